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

package deploy

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/spf13/cobra"
)

type deployController interface {
	Deploy(names []string) error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "deploy [application...]",
		Short:        "Run the deploy hooks of running applications",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(args))
			for _, a := range args {
				if a = strings.TrimSpace(a); a != "" {
					names = append(names, a)
				}
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) deployController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			if err = ctrl.Deploy(names); err != nil {
				return err
			}
			cmd.Println("Deploy hooks completed")
			return nil
		},
	}

	cmd.ValidArgsFunction = config.CompleteApplicationNames
	return cmd
}
