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

package controller

import (
	"fmt"
	"strings"

	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/errdefs"
)

// Shell runs cmd inside a project container and returns its exit code. An
// empty name selects the only application of the project.
func (b *Exec) Shell(name, cmd, user string, sio container.ShellIO) (int, error) {
	p, err := b.loadProject()
	if err != nil {
		return -1, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		apps := p.Applications()
		if len(apps) != 1 {
			return -1, fmt.Errorf("%w: the project has %d applications, name a container", errdefs.ErrContainerNotFound, len(apps))
		}
		name = apps[0].Name()
	}
	c, err := p.Container(name)
	if err != nil {
		return -1, err
	}
	b.logger.DebugContext(b.ctx, "opening shell", "container", c.ContainerName(), "cmd", cmd)
	return c.Shell(b.ctx, cmd, user, sio)
}
