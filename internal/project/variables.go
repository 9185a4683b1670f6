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

package project

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metadata"
)

// Variables returns a copy of the project variables.
func (p *Project) Variables() map[string]string {
	return maps.Clone(p.variables)
}

// GetVariable returns a project variable.
func (p *Project) GetVariable(name string) (string, bool) {
	v, ok := p.variables[name]
	return v, ok
}

// SetVariable stores a project variable. Names prefixed "env:" reach
// applications as environment variables on their next container.
func (p *Project) SetVariable(ctx context.Context, name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "env:" {
		return fmt.Errorf("%w: variable name is required", errdefs.ErrConfig)
	}
	if err := p.requirePath("set variables of"); err != nil {
		return err
	}
	return p.withLock(func() error {
		next := p.Variables()
		next[name] = value
		return p.saveVariables(ctx, next)
	})
}

// DeleteVariable removes a project variable. Removing an absent variable
// is not an error.
func (p *Project) DeleteVariable(ctx context.Context, name string) error {
	if err := p.requirePath("delete variables of"); err != nil {
		return err
	}
	if _, ok := p.variables[name]; !ok {
		return nil
	}
	return p.withLock(func() error {
		next := p.Variables()
		delete(next, name)
		return p.saveVariables(ctx, next)
	})
}

func (p *Project) saveVariables(ctx context.Context, vars map[string]string) error {
	if err := metadata.Write(ctx, p.logger, vars, variablesFile(p.path)); err != nil {
		return err
	}
	p.variables = vars
	return nil
}
