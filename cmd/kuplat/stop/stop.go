// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package stop

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/spf13/cobra"
)

type stopController interface {
	Stop(ref string) error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [project]",
		Short: "Stop the project",
		Long: "Deregister the project from the router and stop its applications and services. " +
			"A project short uid selects a project other than the current one.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 1 {
				ref = strings.TrimSpace(args[0])
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) stopController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			if err = ctrl.Stop(ref); err != nil {
				return err
			}
			if ref == "" {
				cmd.Println("Stopped project")
			} else {
				cmd.Printf("Stopped project %q\n", ref)
			}
			return nil
		},
	}

	cmd.ValidArgsFunction = config.CompleteProjectRefs
	return cmd
}
