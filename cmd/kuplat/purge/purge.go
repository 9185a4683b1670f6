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

package purge

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type purgeController interface {
	Purge(ref string, dryRun bool) (*v1beta1.PurgeDoc, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge [project]",
		Short: "Remove every engine object of the project",
		Long: "Stop the project, then remove its containers, committed images, volumes and network. " +
			"The project directory is left untouched.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_PURGE_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			var ref string
			if len(args) == 1 {
				ref = strings.TrimSpace(args[0])
			}
			dryRun := viper.GetBool(config.KUPLAT_PURGE_DRY_RUN.ViperKey)

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) purgeController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			doc, err := ctrl.Purge(ref, dryRun)
			if doc != nil {
				if printErr := shared.PrintPurge(cmd, format, doc); printErr != nil && err == nil {
					err = printErr
				}
			}
			return err
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_PURGE_OUTPUT.ViperKey)

	cmd.Flags().Bool("dry-run", false, "Report what would be removed without removing it")
	_ = viper.BindPFlag(config.KUPLAT_PURGE_DRY_RUN.ViperKey, cmd.Flags().Lookup("dry-run"))

	cmd.ValidArgsFunction = config.CompleteProjectRefs
	return cmd
}
