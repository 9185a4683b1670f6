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

package ctr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Exec runs a command to completion and captures its output. A non-zero exit
// code is reported in the result, not as an error.
func (c *dockerClient) Exec(ctx context.Context, name string, spec ExecSpec) (ExecResult, error) {
	if name == "" {
		return ExecResult{}, ErrEmptyName
	}
	if c.cli == nil {
		return ExecResult{}, ErrNotConnected
	}

	created, err := c.cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          spec.Cmd,
		User:         spec.User,
		WorkingDir:   spec.WorkingDir,
		Env:          spec.Env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ExecResult{}, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return ExecResult{}, fmt.Errorf("exec create in %s: %w", name, err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec attach in %s: %w", name, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()

	select {
	case copyErr := <-done:
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return ExecResult{}, fmt.Errorf("exec read output in %s: %w", name, copyErr)
		}
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec inspect in %s: %w", name, err)
	}

	c.logger.DebugContext(ctx, "exec finished", "container", name, "cmd", spec.Cmd, "exit", inspect.ExitCode)
	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// ExecInteractive runs a command wired to the caller's streams and returns
// its exit code once it finishes.
func (c *dockerClient) ExecInteractive(
	ctx context.Context,
	name string,
	spec ExecSpec,
	streams Streams,
) (int, error) {
	if name == "" {
		return -1, ErrEmptyName
	}
	if c.cli == nil {
		return -1, ErrNotConnected
	}

	opts := container.ExecOptions{
		Cmd:          spec.Cmd,
		User:         spec.User,
		WorkingDir:   spec.WorkingDir,
		Env:          spec.Env,
		Tty:          streams.Tty,
		AttachStdin:  streams.Stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	}
	if streams.Size != nil {
		opts.ConsoleSize = &[2]uint{streams.Size.Height, streams.Size.Width}
	}
	created, err := c.cli.ContainerExecCreate(ctx, name, opts)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return -1, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return -1, fmt.Errorf("exec create in %s: %w", name, err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{
		Tty:         streams.Tty,
		ConsoleSize: opts.ConsoleSize,
	})
	if err != nil {
		return -1, fmt.Errorf("exec attach in %s: %w", name, err)
	}
	defer attach.Close()

	if streams.Size != nil {
		resizeErr := c.cli.ContainerExecResize(ctx, created.ID, container.ResizeOptions{
			Height: streams.Size.Height,
			Width:  streams.Size.Width,
		})
		if resizeErr != nil {
			c.logger.DebugContext(ctx, "exec resize failed", "container", name, "error", resizeErr)
		}
	}

	if streams.Stdin != nil {
		go func() {
			_, _ = io.Copy(attach.Conn, streams.Stdin)
			_ = attach.CloseWrite()
		}()
	}

	stdout := streams.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := streams.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	done := make(chan error, 1)
	go func() {
		var copyErr error
		if streams.Tty {
			_, copyErr = io.Copy(stdout, attach.Reader)
		} else {
			_, copyErr = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		}
		done <- copyErr
	}()

	select {
	case copyErr := <-done:
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return -1, fmt.Errorf("exec stream in %s: %w", name, copyErr)
		}
	case <-ctx.Done():
		return -1, ctx.Err()
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return -1, fmt.Errorf("exec inspect in %s: %w", name, err)
	}
	return inspect.ExitCode, nil
}
