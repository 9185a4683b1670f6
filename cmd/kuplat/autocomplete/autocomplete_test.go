//go:build !integration

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

package autocomplete_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kuplat/cmd/kuplat"
	"github.com/eminwux/kuplat/cmd/kuplat/autocomplete"
	"github.com/eminwux/kuplat/cmd/types"
	"github.com/spf13/viper"
)

func TestNewAutocompleteCmd(t *testing.T) {
	cmd := autocomplete.NewAutocompleteCmd()

	if cmd.Use != "autocomplete" {
		t.Errorf("Use mismatch: got %q, want %q", cmd.Use, "autocomplete")
	}

	names := map[string]string{}
	for _, sub := range cmd.Commands() {
		names[sub.Use] = sub.Short
	}
	for _, shell := range []string{"bash", "zsh", "fish"} {
		short, ok := names[shell]
		if !ok {
			t.Errorf("missing subcommand %q", shell)
			continue
		}
		if short != "Generate "+shell+" completion script" {
			t.Errorf("Short mismatch for %s: %q", shell, short)
		}
	}
}

func TestAutocompleteScripts(t *testing.T) {
	tests := []struct {
		shell  string
		marker string
	}{
		{shell: "bash", marker: "__start_kuplat"},
		{shell: "zsh", marker: "#compdef kuplat"},
		{shell: "fish", marker: "complete -c kuplat"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())

			rootCmd, err := kuplat.NewKuplatCmd()
			if err != nil {
				t.Fatalf("failed to create root command: %v", err)
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			rootCmd.SetContext(context.WithValue(context.Background(), types.CtxLogger, logger))

			buf := &bytes.Buffer{}
			rootCmd.SetOut(buf)
			rootCmd.SetErr(io.Discard)
			rootCmd.SetArgs([]string{"autocomplete", tt.shell})

			if err = rootCmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.marker) {
				t.Errorf("%s script misses %q", tt.shell, tt.marker)
			}
		})
	}
}

func TestAutocompleteCmdHelp(t *testing.T) {
	cmd := autocomplete.NewAutocompleteCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
}
