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

package variable

import (
	"sort"
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/spf13/cobra"
)

type variableController interface {
	Variables() (map[string]string, error)
	GetVariable(name string) (string, error)
	SetVariable(name, value string) error
	DeleteVariable(name string) error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewVariableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "var",
		Aliases: []string{"variable"},
		Short:   "Manage project variables",
		Long: "Manage the variables injected into every application as environment. " +
			"Changes apply the next time the applications start.",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func controllerFor(cmd *cobra.Command) (variableController, error) {
	return shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) variableController {
		return e
	})
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List project variables",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_VAR_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			vars, err := ctrl.Variables()
			if err != nil {
				return err
			}
			if handled, printErr := shared.PrintDocument(cmd, format, vars); handled {
				return printErr
			}

			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, vars[name]})
			}
			shared.PrintTable(cmd, []string{"NAME", "VALUE"}, rows)
			return nil
		},
	}
	shared.AddOutputFlag(cmd, config.KUPLAT_VAR_OUTPUT.ViperKey)
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "get <name>",
		Short:        "Print the value of a project variable",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			value, err := ctrl.GetVariable(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			cmd.Println(value)
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "set <name> <value>",
		Short:        "Set a project variable",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			name := strings.TrimSpace(args[0])
			if err = ctrl.SetVariable(name, args[1]); err != nil {
				return err
			}
			cmd.Printf("Set variable %q\n", name)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "delete <name>",
		Aliases:      []string{"rm"},
		Short:        "Delete a project variable",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			name := strings.TrimSpace(args[0])
			if err = ctrl.DeleteVariable(name); err != nil {
				return err
			}
			cmd.Printf("Deleted variable %q\n", name)
			return nil
		},
	}
}
