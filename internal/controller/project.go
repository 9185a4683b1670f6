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
	"errors"
	"fmt"
	"strings"

	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/eminwux/kuplat/internal/service"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
)

// InitReport describes the identity of an initialised project.
type InitReport struct {
	UID      string `json:"uid"      yaml:"uid"`
	ShortUID string `json:"shortUid" yaml:"shortUid"`
	Path     string `json:"path"     yaml:"path"`
	Created  bool   `json:"created"  yaml:"created"`
}

// StartResult is the project after a start plus what the router left out.
type StartResult struct {
	Project   *v1beta1.ProjectDoc
	Omissions []router.Omission
}

// Init creates or updates the identity of the project at the configured path.
func (b *Exec) Init(config map[string]string) (InitReport, error) {
	path, err := b.projectPath()
	if err != nil {
		return InitReport{}, err
	}
	if len(b.opts.Domains) > 0 {
		if config == nil {
			config = map[string]string{}
		}
		config[project.ConfigDomains] = strings.Join(b.opts.Domains, ",")
	}
	id, created, err := project.Init(b.ctx, b.logger, path, config)
	if err != nil {
		return InitReport{}, err
	}
	b.logger.DebugContext(b.ctx, "project initialised", "uid", id.UID, "created", created)
	return InitReport{UID: id.UID, ShortUID: naming.ShortUID(id.UID), Path: path, Created: created}, nil
}

// Start brings the project at the configured path up.
func (b *Exec) Start() (StartResult, error) {
	p, err := b.loadProject()
	if err != nil {
		return StartResult{}, err
	}
	report, err := p.Start(b.ctx)
	if err != nil {
		return StartResult{Omissions: report.Omissions}, err
	}
	doc, err := b.projectDoc(p)
	return StartResult{Project: doc, Omissions: report.Omissions}, err
}

// Stop stops the project named by ref, or the one at the configured path.
func (b *Exec) Stop(ref string) error {
	p, err := b.resolveProject(ref)
	if err != nil {
		return err
	}
	return p.Stop(b.ctx)
}

// Restart stops then starts the project at the configured path.
func (b *Exec) Restart() (StartResult, error) {
	p, err := b.loadProject()
	if err != nil {
		return StartResult{}, err
	}
	report, err := p.Restart(b.ctx)
	if err != nil {
		return StartResult{Omissions: report.Omissions}, err
	}
	doc, err := b.projectDoc(p)
	return StartResult{Project: doc, Omissions: report.Omissions}, err
}

// Build rebuilds the named applications, or all of them.
func (b *Exec) Build(names []string) ([]project.BuildReport, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, err
	}
	return p.Build(b.ctx, names)
}

// Deploy runs the deploy hooks of the named applications, or all of them.
func (b *Exec) Deploy(names []string) error {
	p, err := b.loadProject()
	if err != nil {
		return err
	}
	return p.Deploy(b.ctx, names)
}

// Status describes the project named by ref, or the one at the configured path.
func (b *Exec) Status(ref string) (*v1beta1.ProjectDoc, error) {
	p, err := b.resolveProject(ref)
	if err != nil {
		return nil, err
	}
	return b.projectDoc(p)
}

// List returns every project known to the engine.
func (b *Exec) List() ([]project.Summary, error) {
	if err := b.connect(); err != nil {
		return nil, err
	}
	return project.List(b.ctx, b.client)
}

// Purge removes every engine object of the project named by ref, or the
// one at the configured path.
func (b *Exec) Purge(ref string, dryRun bool) (*v1beta1.PurgeDoc, error) {
	p, err := b.resolveProject(ref)
	if err != nil {
		return nil, err
	}
	report, err := p.Purge(b.ctx, dryRun)
	return purgeDoc(p.ShortUID(), report), err
}

// Relationships returns the connection descriptors of an application.
func (b *Exec) Relationships(app string) (map[string][]service.Relationship, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(app) == "" {
		apps := p.Applications()
		if len(apps) != 1 {
			return nil, fmt.Errorf("%w: the project has %d applications, name one", errdefs.ErrContainerNotFound, len(apps))
		}
		app = apps[0].Name()
	}
	return p.Relationships(app)
}

// Routes returns the router configuration compiled for the running
// applications.
func (b *Exec) Routes() ([]byte, []router.Omission, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, nil, err
	}
	return p.RouterConfig(b.ctx)
}

// InstalledRoutes returns the configuration the router currently serves
// for the project.
func (b *Exec) InstalledRoutes(ref string) (string, error) {
	p, err := b.resolveProject(ref)
	if err != nil {
		return "", err
	}
	r, err := b.getRouter()
	if err != nil {
		return "", err
	}
	out, err := r.Config(b.ctx, p.ShortUID())
	var cmdErr *errdefs.CommandError
	if errors.As(err, &cmdErr) {
		return "", fmt.Errorf("%w: project %s is not registered", errdefs.ErrRouterConfig, p.ShortUID())
	}
	return out, err
}

// ContainerNames lists the logical container names of the project at the
// configured path, applications first.
func (b *Exec) ContainerNames() ([]string, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, app := range p.Applications() {
		names = append(names, app.Name())
	}
	for _, svc := range p.Services() {
		names = append(names, svc.Name())
	}
	return names, nil
}

// ApplicationNames lists the applications of the project at the
// configured path.
func (b *Exec) ApplicationNames() ([]string, error) {
	p, err := b.loadProject()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(p.Applications()))
	for _, app := range p.Applications() {
		names = append(names, app.Name())
	}
	return names, nil
}
