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

package restart

import (
	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/spf13/cobra"
)

type restartController interface {
	Restart() (controller.StartResult, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRestartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "restart",
		Short:        "Stop then start the project",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_RESTART_OUTPUT.ViperKey)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) restartController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			result, err := ctrl.Restart()
			shared.PrintOmissions(cmd, result.Omissions)
			if err != nil {
				return err
			}
			return shared.PrintProject(cmd, format, result.Project)
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_RESTART_OUTPUT.ViperKey)
	return cmd
}
