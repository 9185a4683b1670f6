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

package list_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kuplat/cmd/kuplat/list"
	"github.com/eminwux/kuplat/cmd/types"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/spf13/viper"
)

type fakeListController struct {
	summaries []project.Summary
}

func (f *fakeListController) List() ([]project.Summary, error) { return f.summaries, nil }

func TestListCmd(t *testing.T) {
	summaries := []project.Summary{
		{UID: "abc123def", ShortUID: "abc123", Path: "/srv/shop", Network: "kuplat_abc123", Containers: 3, Running: 2, Domains: "shop.test"},
		{UID: "fff000aaa", ShortUID: "fff000", Network: "kuplat_fff000", Containers: 1},
	}

	tests := []struct {
		name       string
		args       []string
		summaries  []project.Summary
		wantOutput []string
	}{
		{
			name:       "table",
			summaries:  summaries,
			wantOutput: []string{"SHORT UID", "abc123", "/srv/shop", "2/3", "shop.test", "fff000", "0/1"},
		},
		{
			name:       "yaml",
			args:       []string{"-o", "yaml"},
			summaries:  summaries,
			wantOutput: []string{"shortUid: abc123", "running: 2"},
		},
		{name: "no projects", wantOutput: []string{"No resources found."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			ctx := context.WithValue(context.Background(), types.CtxLogger, logger)
			ctx = context.WithValue(ctx, list.MockControllerKey{}, &fakeListController{summaries: tt.summaries})

			cmd := list.NewListCmd()
			buf := &bytes.Buffer{}
			cmd.SetOut(buf)
			cmd.SetErr(io.Discard)
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output misses %q:\n%s", want, buf.String())
				}
			}
		})
	}
}
