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

package version_test

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/version"
)

type fakeVersionProvider struct {
	versionFn func() string
}

func (f *fakeVersionProvider) Version() string {
	if f.versionFn == nil {
		return "test-version"
	}
	return f.versionFn()
}

func TestVersionCmdRun(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		provider   version.VersionProvider
		wantOutput string
	}{
		{
			name:       "short version from config",
			args:       []string{"--short"},
			wantOutput: config.Version + "\n",
		},
		{
			name:       "ignores arguments",
			args:       []string{"--short", "arg1"},
			wantOutput: config.Version + "\n",
		},
		{
			name:       "short mock version",
			args:       []string{"--short"},
			provider:   &fakeVersionProvider{versionFn: func() string { return "v1.2.3" }},
			wantOutput: "v1.2.3\n",
		},
		{
			name:       "long form carries the runtime",
			provider:   &fakeVersionProvider{},
			wantOutput: "kuplat test-version (" + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.provider != nil {
				ctx = context.WithValue(ctx, version.MockVersionProviderKey{}, tt.provider)
			}

			cmd := version.NewVersionCmd()
			buf := &bytes.Buffer{}
			cmd.SetOut(buf)
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v, want nil", err)
			}
			if buf.String() != tt.wantOutput {
				t.Errorf("output mismatch: got %q, want %q", buf.String(), tt.wantOutput)
			}
			if !strings.HasSuffix(buf.String(), "\n") {
				t.Error("output should end with a newline")
			}
		})
	}
}
