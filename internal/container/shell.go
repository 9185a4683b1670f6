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

package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// ShellIO is the caller's side of a shell session.
type ShellIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Shell runs cmd (an interactive shell when empty) and returns its exit code.
// A terminal stdin gets a raw-mode TTY session. Piped stdin is uploaded to a
// temp file and fed through cat since exec cannot stream stdin.
func (c *Container) Shell(ctx context.Context, cmd, user string, sio ShellIO) (int, error) {
	if err := c.requireRunning(ctx, "shell"); err != nil {
		return -1, err
	}

	if f, ok := sio.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return c.interactiveShell(ctx, cmd, user, f, sio)
	}
	if sio.Stdin != nil {
		return c.pipedShell(ctx, cmd, user, sio)
	}

	return c.client.ExecInteractive(ctx, c.containerName, ctr.ExecSpec{
		Cmd:  shellCommand(cmd),
		User: user,
	}, ctr.Streams{Stdout: sio.Stdout, Stderr: sio.Stderr})
}

func (c *Container) interactiveShell(ctx context.Context, cmd, user string, tty *os.File, sio ShellIO) (int, error) {
	streams := ctr.Streams{Stdin: tty, Stdout: sio.Stdout, Stderr: sio.Stderr, Tty: true}
	if size, err := pty.GetsizeFull(tty); err == nil {
		streams.Size = &ctr.TermSize{Height: uint(size.Rows), Width: uint(size.Cols)}
	}

	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		return -1, fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(int(tty.Fd()), state)
	}()

	return c.client.ExecInteractive(ctx, c.containerName, ctr.ExecSpec{
		Cmd:  shellCommand(cmd),
		User: user,
		Env:  []string{"TERM=xterm"},
	}, streams)
}

func (c *Container) pipedShell(ctx context.Context, cmd, user string, sio ShellIO) (int, error) {
	data, err := io.ReadAll(sio.Stdin)
	if err != nil {
		return -1, fmt.Errorf("read stdin: %w", err)
	}
	tmp := "/tmp/kuplat-stdin-" + uuid.NewString()[:8]
	if err = c.UploadFile(ctx, data, tmp, 0o644); err != nil {
		return -1, err
	}
	defer func() {
		_, _ = c.client.Exec(ctx, c.containerName, ctr.ExecSpec{Cmd: []string{"rm", "-f", tmp}})
	}()

	if cmd == "" {
		cmd = "sh"
	}
	res, err := c.client.Exec(ctx, c.containerName, ctr.ExecSpec{
		Cmd:  []string{"sh", "-c", fmt.Sprintf("cat %s | %s", tmp, cmd)},
		User: user,
	})
	if err != nil {
		return -1, err
	}
	copyTo(sio.Stdout, res.Stdout)
	copyTo(sio.Stderr, res.Stderr)
	return res.ExitCode, nil
}

func shellCommand(cmd string) []string {
	if cmd == "" {
		return []string{"sh", "-c", "command -v bash >/dev/null && exec bash -l || exec sh -l"}
	}
	return []string{"sh", "-c", cmd}
}

func copyTo(w io.Writer, s string) {
	if w == nil || s == "" {
		return
	}
	_, _ = io.Copy(w, bytes.NewBufferString(s))
}
