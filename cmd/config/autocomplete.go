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

package config

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/eminwux/kuplat/cmd/types"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/spf13/cobra"
)

// MockCompletionSourceKey is used to inject a completion source in tests via context.
type MockCompletionSourceKey struct{}

// CompletionSource supplies the names offered by shell completion.
type CompletionSource interface {
	ProjectRefs() ([]string, error)
	ContainerNames() ([]string, error)
	ApplicationNames() ([]string, error)
}

type controllerSource struct {
	ctrl *controller.Exec
}

func (s controllerSource) ProjectRefs() ([]string, error) {
	list, err := s.ctrl.List()
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(list))
	for _, p := range list {
		refs = append(refs, p.ShortUID)
	}
	return refs, nil
}

func (s controllerSource) ContainerNames() ([]string, error)   { return s.ctrl.ContainerNames() }
func (s controllerSource) ApplicationNames() ([]string, error) { return s.ctrl.ApplicationNames() }

// sourceFromCmd returns the injected completion source or one backed by a
// real controller. The release func closes the engine connection.
func sourceFromCmd(cmd *cobra.Command) (CompletionSource, func(), error) {
	if src, ok := cmd.Context().Value(MockCompletionSourceKey{}).(CompletionSource); ok {
		return src, func() {}, nil
	}
	logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, nil, errdefs.ErrLoggerNotFound
	}
	ctrl := controller.NewControllerExec(cmd.Context(), logger, ControllerOptions())
	return controllerSource{ctrl: ctrl}, func() { _ = ctrl.Close() }, nil
}

// atPositionalLimit reports whether the command already holds all the
// positional arguments it accepts, so completion should stop offering more.
func atPositionalLimit(cmd *cobra.Command, args []string, toComplete string) bool {
	if len(args) == 0 || toComplete != "" || cmd.Args == nil {
		return false
	}
	return cmd.Args(cmd, append(slices.Clone(args), "next")) != nil
}

func complete(
	cmd *cobra.Command,
	args []string,
	toComplete string,
	list func(CompletionSource) ([]string, error),
) ([]string, cobra.ShellCompDirective) {
	if atPositionalLimit(cmd, args, toComplete) {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	src, release, err := sourceFromCmd(cmd)
	if err != nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	defer release()

	names, err := list(src)
	if err != nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return FilterCompletions(names, args, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// FilterCompletions keeps the names starting with toComplete that are not
// already on the command line, without duplicates.
func FilterCompletions(names, args []string, toComplete string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] || slices.Contains(args, name) || !strings.HasPrefix(name, toComplete) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// CompleteProjectRefs completes the short uids of projects in the engine.
func CompleteProjectRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return complete(cmd, args, toComplete, CompletionSource.ProjectRefs)
}

// CompleteContainerNames completes the containers of the project at the
// configured path.
func CompleteContainerNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return complete(cmd, args, toComplete, CompletionSource.ContainerNames)
}

// CompleteApplicationNames completes the applications of the project at
// the configured path.
func CompleteApplicationNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return complete(cmd, args, toComplete, CompletionSource.ApplicationNames)
}
