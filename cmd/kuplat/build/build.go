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

package build

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type buildController interface {
	Build(names []string) ([]project.BuildReport, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [application...]",
		Short: "Rebuild applications",
		Long: "Rebuild the named applications, or all of them, from their base images. " +
			"The build hook runs in a fresh container whose result is committed as the application image.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_BUILD_OUTPUT.ViperKey)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(args))
			for _, a := range args {
				if a = strings.TrimSpace(a); a != "" {
					names = append(names, a)
				}
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) buildController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			reports, err := ctrl.Build(names)
			if err != nil {
				return err
			}
			if handled, printErr := shared.PrintDocument(cmd, format, reports); handled {
				return printErr
			}

			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				hook := "ok"
				if r.HookError != "" {
					hook = r.HookError
				}
				rows = append(rows, []string{r.Application, r.Image, hook})
			}
			shared.PrintTable(cmd, []string{"APPLICATION", "IMAGE", "HOOK"}, rows)
			return nil
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_BUILD_OUTPUT.ViperKey)

	cmd.Flags().String("ssh-key", "", "Private key installed for the build hook")
	_ = viper.BindPFlag(config.KUPLAT_BUILD_SSH_KEY.ViperKey, cmd.Flags().Lookup("ssh-key"))

	cmd.Flags().StringSlice("known-hosts", nil, "Hosts whose keys are trusted during the build hook")
	_ = viper.BindPFlag(config.KUPLAT_BUILD_KNOWN_HOSTS.ViperKey, cmd.Flags().Lookup("known-hosts"))

	cmd.ValidArgsFunction = config.CompleteApplicationNames
	return cmd
}
