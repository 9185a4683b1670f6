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

	"github.com/eminwux/kuplat/internal/errdefs"
)

// Variables returns every project variable.
func (b *Exec) Variables() (map[string]string, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, err
	}
	return p.Variables(), nil
}

// GetVariable returns one project variable.
func (b *Exec) GetVariable(name string) (string, error) {
	p, err := b.loadProject()
	if err != nil {
		return "", err
	}
	v, ok := p.GetVariable(name)
	if !ok {
		return "", fmt.Errorf("%w: variable %q is not set", errdefs.ErrConfig, name)
	}
	return v, nil
}

// SetVariable persists a project variable. Running applications see it
// after their next start.
func (b *Exec) SetVariable(name, value string) error {
	p, err := b.loadProject()
	if err != nil {
		return err
	}
	return p.SetVariable(b.ctx, name, value)
}

// DeleteVariable removes a project variable.
func (b *Exec) DeleteVariable(name string) error {
	p, err := b.loadProject()
	if err != nil {
		return err
	}
	return p.DeleteVariable(b.ctx, name)
}
