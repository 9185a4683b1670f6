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

package shell

import (
	"io"
	"os"
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type shellController interface {
	Shell(name, cmd, user string, sio container.ShellIO) (int, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

// MockStdinKey replaces os.Stdin in tests.
type MockStdinKey struct{}

func NewShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell [container] [-- command...]",
		Short: "Open a shell or run a command in a project container",
		Long: "Open an interactive shell in the named container, or in the only application " +
			"when no name is given. Arguments after -- run as a command instead. The exit " +
			"code of the command becomes the exit code of kuplat.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, command, err := splitArgs(cmd, args)
			if err != nil {
				return err
			}
			user := strings.TrimSpace(viper.GetString(config.KUPLAT_SHELL_USER.ViperKey))

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) shellController {
				return e
			})
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			sio := container.ShellIO{Stdin: os.Stdin, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
			if in, ok := cmd.Context().Value(MockStdinKey{}).(io.Reader); ok {
				sio.Stdin = in
			}

			code, err := ctrl.Shell(name, command, user, sio)
			if err != nil {
				return err
			}
			if code != 0 {
				cmd.SilenceErrors = true
				return &errdefs.CommandError{Container: name, Command: command, ExitCode: code}
			}
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", "", "User to run as inside the container")
	_ = viper.BindPFlag(config.KUPLAT_SHELL_USER.ViperKey, cmd.Flags().Lookup("user"))

	cmd.ValidArgsFunction = config.CompleteContainerNames
	return cmd
}

// splitArgs separates the container name from the command after --.
func splitArgs(cmd *cobra.Command, args []string) (string, string, error) {
	before, after := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		before, after = args[:dash], args[dash:]
	}
	if len(before) > 1 {
		return "", "", cobra.MaximumNArgs(1)(cmd, before)
	}
	var name string
	if len(before) == 1 {
		name = strings.TrimSpace(before[0])
	}
	return name, strings.Join(after, " "), nil
}
