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

package status

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
	"github.com/spf13/cobra"
)

type statusController interface {
	Status(ref string) (*v1beta1.ProjectDoc, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status [project]",
		Short:        "Show the state of the project containers",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_STATUS_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			var ref string
			if len(args) == 1 {
				ref = strings.TrimSpace(args[0])
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) statusController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			doc, err := ctrl.Status(ref)
			if err != nil {
				return err
			}
			return shared.PrintProject(cmd, format, doc)
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_STATUS_OUTPUT.ViperKey)
	cmd.ValidArgsFunction = config.CompleteProjectRefs
	return cmd
}
