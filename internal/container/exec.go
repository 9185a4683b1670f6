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
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
)

// RunCommand runs cmd through sh -c as user and returns its stdout.
func (c *Container) RunCommand(ctx context.Context, cmd, user string) (string, error) {
	return c.Exec(ctx, ctr.ExecSpec{Cmd: []string{"sh", "-c", cmd}, User: user})
}

// Exec runs spec inside the running container. A non-zero exit code is
// returned as *errdefs.CommandError.
func (c *Container) Exec(ctx context.Context, spec ctr.ExecSpec) (string, error) {
	if err := c.requireRunning(ctx, "exec"); err != nil {
		return "", err
	}
	res, err := c.client.Exec(ctx, c.containerName, spec)
	if err != nil {
		return "", fmt.Errorf("exec in %s: %w", c.containerName, err)
	}
	if res.ExitCode != 0 {
		return res.Stdout, &errdefs.CommandError{
			Container: c.containerName,
			Command:   displayCommand(spec.Cmd),
			ExitCode:  res.ExitCode,
			Output:    res.Output(),
		}
	}
	return res.Stdout, nil
}

// UploadFile writes data to the absolute path dst inside the running container.
func (c *Container) UploadFile(ctx context.Context, data []byte, dst string, mode int64) error {
	if err := c.requireRunning(ctx, "upload"); err != nil {
		return err
	}
	archive, err := ctr.FileArchive(dst, data, mode)
	if err != nil {
		return err
	}
	if err = c.client.CopyToContainer(ctx, c.containerName, path.Dir(dst), archive); err != nil {
		return fmt.Errorf("upload %s to %s: %w", dst, c.containerName, err)
	}
	return nil
}

func (c *Container) requireRunning(ctx context.Context, op string) error {
	running, err := c.IsRunning(ctx)
	if err != nil {
		return err
	}
	if !running {
		return errdefs.NewStateError(c.containerName, op, errdefs.ErrNotRunning)
	}
	return nil
}

func displayCommand(cmd []string) string {
	if len(cmd) == 3 && cmd[0] == "sh" && cmd[1] == "-c" {
		return cmd[2]
	}
	return strings.Join(cmd, " ")
}
