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

package routes

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type routesController interface {
	Routes() ([]byte, []router.Omission, error)
	InstalledRoutes(ref string) (string, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes [project]",
		Short: "Print the router configuration of the project",
		Long: "Print the router configuration compiled from the project routes and the " +
			"applications currently running. With --installed, print the configuration " +
			"the router serves for the project instead.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 1 {
				ref = strings.TrimSpace(args[0])
			}
			installed := viper.GetBool(config.KUPLAT_ROUTES_INSTALLED.ViperKey)

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) routesController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			if installed || ref != "" {
				out, installedErr := ctrl.InstalledRoutes(ref)
				if installedErr != nil {
					return installedErr
				}
				cmd.Print(out)
				return nil
			}

			out, omissions, err := ctrl.Routes()
			shared.PrintOmissions(cmd, omissions)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}

	cmd.Flags().Bool("installed", false, "Print the configuration installed in the router")
	_ = viper.BindPFlag(config.KUPLAT_ROUTES_INSTALLED.ViperKey, cmd.Flags().Lookup("installed"))

	cmd.ValidArgsFunction = config.CompleteProjectRefs
	return cmd
}
