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
	"slices"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
)

// Container states reported by Status.
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateAbsent  = "absent"
)

// ContainerStatus is the state of one managed container.
type ContainerStatus struct {
	Name          string `json:"name"                yaml:"name"`
	Kind          string `json:"kind"                yaml:"kind"`
	Type          string `json:"type,omitempty"      yaml:"type,omitempty"`
	ContainerName string `json:"container"           yaml:"container"`
	State         string `json:"state"               yaml:"state"`
	Image         string `json:"image,omitempty"     yaml:"image,omitempty"`
	Provisioned   bool   `json:"provisioned"         yaml:"provisioned"`
	// Stale is set when the commit image was built from an older configuration.
	Stale bool `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Status is the state of the whole project.
type Status struct {
	UID        string            `json:"uid"                  yaml:"uid"`
	ShortUID   string            `json:"shortUid"             yaml:"shortUid"`
	Path       string            `json:"path,omitempty"       yaml:"path,omitempty"`
	Network    string            `json:"network"              yaml:"network"`
	Routed     bool              `json:"routed"               yaml:"routed"`
	Hostnames  []string          `json:"hostnames,omitempty"  yaml:"hostnames,omitempty"`
	Containers []ContainerStatus `json:"containers,omitempty" yaml:"containers,omitempty"`
}

// Status inspects every container of the project. A build is reported
// stale but never rebuilt implicitly.
func (p *Project) Status(ctx context.Context) (Status, error) {
	st := Status{
		UID:       p.identity.UID,
		ShortUID:  p.ShortUID(),
		Path:      p.path,
		Network:   p.NetworkName(),
		Hostnames: p.hostnames(),
	}

	types := map[string]string{}
	for _, app := range p.Applications() {
		types[app.Name()] = app.TypeVersion()
	}
	for _, svc := range p.Services() {
		types[svc.Name()] = svc.TypeVersion()
	}

	for _, c := range p.containers() {
		cs, err := containerStatus(ctx, c)
		if err != nil {
			return st, err
		}
		cs.Type = types[c.Name()]
		st.Containers = append(st.Containers, cs)
	}

	if p.opts.Router != nil {
		running, err := p.opts.Router.IsRunning(ctx)
		if err != nil {
			return st, err
		}
		if running {
			shorts, err := p.opts.Router.Registered(ctx)
			if err != nil {
				return st, err
			}
			st.Routed = slices.Contains(shorts, p.ShortUID())
		}
	}
	return st, nil
}

func containerStatus(ctx context.Context, c *container.Container) (ContainerStatus, error) {
	cs := ContainerStatus{
		Name:          c.Name(),
		Kind:          c.Kind(),
		ContainerName: c.ContainerName(),
		State:         StateAbsent,
	}
	info, exists, err := c.Inspect(ctx)
	if err != nil {
		return cs, err
	}
	if exists {
		cs.Image = info.Image
		cs.State = StateStopped
		if info.Running {
			cs.State = StateRunning
		}
	}
	if c.Kind() != consts.KindApplication {
		return cs, nil
	}
	if cs.Provisioned, err = c.IsProvisioned(ctx); err != nil {
		return cs, err
	}
	if cs.Stale, err = c.IsStale(ctx); err != nil {
		return cs, err
	}
	return cs, nil
}
