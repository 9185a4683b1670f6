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

package relationships

import (
	"sort"
	"strconv"
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/service"
	"github.com/spf13/cobra"
)

type relationshipsController interface {
	Relationships(app string) (map[string][]service.Relationship, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRelationshipsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relationships [application]",
		Aliases:      []string{"rel"},
		Short:        "Show the service connections of an application",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_RELATIONSHIPS_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			var app string
			if len(args) == 1 {
				app = strings.TrimSpace(args[0])
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) relationshipsController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			rels, err := ctrl.Relationships(app)
			if err != nil {
				return err
			}
			if handled, printErr := shared.PrintDocument(cmd, format, rels); handled {
				return printErr
			}

			names := make([]string, 0, len(rels))
			for name := range rels {
				names = append(names, name)
			}
			sort.Strings(names)
			var rows [][]string
			for _, name := range names {
				for _, r := range rels[name] {
					rows = append(rows, []string{name, r.Service, r.Scheme, r.Host, strconv.Itoa(r.Port)})
				}
			}
			shared.PrintTable(cmd, []string{"RELATIONSHIP", "SERVICE", "SCHEME", "HOST", "PORT"}, rows)
			return nil
		},
	}

	shared.AddOutputFlag(cmd, config.KUPLAT_RELATIONSHIPS_OUTPUT.ViperKey)
	cmd.ValidArgsFunction = config.CompleteApplicationNames
	return cmd
}
