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

package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	kuplat = "kuplat"
	docker = "docker"
)

// kuplatBinary returns the binary under E2E_BIN_DIR, skipping the test when
// it has not been built.
func kuplatBinary(t *testing.T) string {
	t.Helper()

	dir := os.Getenv("E2E_BIN_DIR")
	if dir == "" {
		dir = ".."
	}
	bin := filepath.Join(dir, kuplat)
	if _, err := os.Stat(bin); os.IsNotExist(err) {
		t.Skipf("binary %s not found, skipping", bin)
	}
	return bin
}

// runBinary executes kuplat and returns exit code, stdout, stderr separately.
func runBinary(t *testing.T, env []string, timeout time.Duration, args ...string) (int, []byte, []byte) {
	t.Helper()

	bin := kuplatBinary(t)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitError := &exec.ExitError{}
		if !errors.As(err, &exitError) {
			t.Fatalf("failed to run %s %v: %v", bin, args, err)
		}
		exitCode = exitError.ExitCode()
	}
	return exitCode, []byte(stdoutBuf.String()), []byte(stderrBuf.String())
}

// mustRun fails the test on a non-zero exit and returns stdout.
func mustRun(t *testing.T, env []string, timeout time.Duration, args ...string) []byte {
	t.Helper()

	code, stdout, stderr := runBinary(t, env, timeout, args...)
	if code != 0 {
		t.Fatalf("kuplat %v exited %d\nstdout:\n%s\nstderr:\n%s", args, code, stdout, stderr)
	}
	return stdout
}

// requireDocker skips the test when no engine answers.
func requireDocker(t *testing.T) {
	t.Helper()

	path, err := exec.LookPath(docker)
	if err != nil {
		t.Skip("docker binary not found, skipping")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, infoErr := exec.CommandContext(ctx, path, "info").CombinedOutput(); infoErr != nil {
		t.Skipf("docker engine unavailable: %v\n%s", infoErr, out)
	}
}

// writeProject lays out a project directory from relative paths to contents.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return dir
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to decode %q: %v", data, err)
	}
}
