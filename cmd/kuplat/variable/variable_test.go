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

package variable_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kuplat/cmd/kuplat/variable"
	"github.com/eminwux/kuplat/cmd/types"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/spf13/viper"
)

type fakeVariableController struct {
	vars map[string]string
}

func (f *fakeVariableController) Variables() (map[string]string, error) { return f.vars, nil }

func (f *fakeVariableController) GetVariable(name string) (string, error) {
	v, ok := f.vars[name]
	if !ok {
		return "", fmt.Errorf("%w: variable %q is not set", errdefs.ErrConfig, name)
	}
	return v, nil
}

func (f *fakeVariableController) SetVariable(name, value string) error {
	f.vars[name] = value
	return nil
}

func (f *fakeVariableController) DeleteVariable(name string) error {
	delete(f.vars, name)
	return nil
}

func run(t *testing.T, fake *fakeVariableController, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.WithValue(context.Background(), types.CtxLogger, logger)
	ctx = context.WithValue(ctx, variable.MockControllerKey{}, fake)

	cmd := variable.NewVariableCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetContext(ctx)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVariableCmd(t *testing.T) {
	fake := &fakeVariableController{vars: map[string]string{"APP_ENV": "dev"}}

	out, err := run(t, fake, "set", "DATABASE_URL", "postgres://db/app")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, `Set variable "DATABASE_URL"`) || fake.vars["DATABASE_URL"] != "postgres://db/app" {
		t.Fatalf("set did not persist: %q %v", out, fake.vars)
	}

	out, err = run(t, fake, "get", "DATABASE_URL")
	if err != nil || out != "postgres://db/app\n" {
		t.Fatalf("get = %q, %v", out, err)
	}

	out, err = run(t, fake, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Index(out, "APP_ENV") > strings.Index(out, "DATABASE_URL") {
		t.Errorf("list is not sorted:\n%s", out)
	}

	out, err = run(t, fake, "list", "-o", "json")
	if err != nil || !strings.Contains(out, `"APP_ENV": "dev"`) {
		t.Fatalf("list json = %q, %v", out, err)
	}

	if _, err = run(t, fake, "delete", "APP_ENV"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err = run(t, fake, "get", "APP_ENV"); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected ErrConfig after delete, got %v", err)
	}
}

func TestVariableCmdArgs(t *testing.T) {
	fake := &fakeVariableController{vars: map[string]string{}}
	for _, args := range [][]string{{"set", "ONLY_NAME"}, {"get"}, {"delete", "A", "B"}} {
		if _, err := run(t, fake, args...); err == nil {
			t.Errorf("%v: expected an argument error", args)
		}
	}
}
