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

package list

import (
	"fmt"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/spf13/cobra"
)

type listController interface {
	List() ([]project.Summary, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List the projects known to the engine",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_LIST_OUTPUT.ViperKey)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) listController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			summaries, err := ctrl.List()
			if err != nil {
				return err
			}
			if handled, printErr := shared.PrintDocument(cmd, format, summaries); handled {
				return printErr
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				path := s.Path
				if path == "" {
					path = "-"
				}
				domains := s.Domains
				if domains == "" {
					domains = "-"
				}
				rows = append(rows, []string{
					s.ShortUID,
					path,
					s.Network,
					fmt.Sprintf("%d/%d", s.Running, s.Containers),
					domains,
				})
			}
			shared.PrintTable(cmd, []string{"SHORT UID", "PATH", "NETWORK", "RUNNING", "DOMAINS"}, rows)
			return nil
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_LIST_OUTPUT.ViperKey)
	return cmd
}
