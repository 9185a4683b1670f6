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

// Package project orchestrates one project's services, applications and
// router registration on top of the container engine.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/application"
	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metadata"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/eminwux/kuplat/internal/parser"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/eminwux/kuplat/internal/service"
)

// Options carries the collaborators and settings of a project.
type Options struct {
	Logger  *slog.Logger
	Client  ctr.Client
	Metrics *metrics.Metrics
	// Router is the shared router. Nil disables registration.
	Router    *router.Router
	Readiness service.ReadinessPolicy
	// Domains override the domains stored in the project config.
	Domains []string
	Build   application.BuildOptions
	// LockDir holds project lock files; defaults to lock.RuntimeDir().
	LockDir string
}

// Project is one provisioned stack.
type Project struct {
	logger  *slog.Logger
	client  ctr.Client
	metrics *metrics.Metrics
	opts    Options

	identity  Identity
	path      string
	cfg       *parser.Config
	variables map[string]string

	services     map[string]*service.Service
	serviceOrder []string
	apps         map[string]*application.Application
	appOrder     []string

	// recovered holds the containers of a project rebuilt from engine labels.
	recovered []*container.Container
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Readiness.Timeout == 0 {
		o.Readiness = service.DefaultReadinessPolicy()
	}
	return o
}

// Init creates the identity of the project at path when missing and merges
// config into it. It reports whether a new identity was generated.
func Init(ctx context.Context, logger *slog.Logger, path string, config map[string]string) (Identity, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, false, fmt.Errorf("%w: %w", errdefs.ErrInit, err)
	}
	if !parser.HasProjectConfig(abs) {
		return Identity{}, false, fmt.Errorf("%w: no project configuration in %s", errdefs.ErrInit, abs)
	}
	id, created, err := loadIdentity(ctx, logger, abs)
	if err != nil {
		return Identity{}, false, err
	}
	if len(config) == 0 {
		return id, created, nil
	}
	for k, v := range config {
		if v == "" {
			delete(id.Config, k)
			continue
		}
		id.Config[k] = v
	}
	if err = metadata.Write(ctx, logger, id, identityFile(abs)); err != nil {
		return Identity{}, false, err
	}
	return id, created, nil
}

// Load validates path, loads or generates the project identity, reads
// variables and configuration and builds every service and application.
func Load(ctx context.Context, path string, opts Options) (*Project, error) {
	opts = opts.withDefaults()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrInit, err)
	}
	if !parser.HasProjectConfig(abs) {
		return nil, fmt.Errorf("%w: no project configuration in %s", errdefs.ErrInit, abs)
	}

	id, _, err := loadIdentity(ctx, opts.Logger, abs)
	if err != nil {
		return nil, err
	}
	vars, err := metadata.ReadOrDefault(ctx, opts.Logger, variablesFile(abs), map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrLoadVariables, err)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	cfg, err := parser.Load(abs)
	if err != nil {
		return nil, err
	}

	p := &Project{
		logger:    opts.Logger.With("project", naming.ShortUID(id.UID)),
		client:    opts.Client,
		metrics:   opts.Metrics,
		opts:      opts,
		identity:  id,
		path:      abs,
		cfg:       cfg,
		variables: vars,
		services:  map[string]*service.Service{},
		apps:      map[string]*application.Application{},
	}
	if err = p.buildServices(); err != nil {
		return nil, err
	}
	if err = p.buildApplications(); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "project loaded",
		"path", abs, "services", p.serviceOrder, "applications", p.appOrder)
	return p, nil
}

func (p *Project) ref() container.ProjectRef {
	return container.ProjectRef{
		UID: p.identity.UID,
		NetworkLabels: map[string]string{
			consts.LabelProjectEntropy: p.identity.Entropy,
			consts.LabelProjectConfig:  encodeEngineLabel(p.path, p.identity.Config),
		},
	}
}

func (p *Project) buildServices() error {
	for _, cfg := range p.cfg.Services {
		svc, err := service.New(cfg, service.Deps{
			Logger:  p.opts.Logger,
			Client:  p.client,
			Metrics: p.metrics,
			Project: p.ref(),
			Entropy: p.identity.Entropy,
		})
		if err != nil {
			return err
		}
		p.services[cfg.Name] = svc
		p.serviceOrder = append(p.serviceOrder, cfg.Name)
	}
	sort.Strings(p.serviceOrder)
	return nil
}

// buildApplications resolves relationships to service instances before
// each application is constructed.
func (p *Project) buildApplications() error {
	routes := p.routesPayload()
	for _, cfg := range p.cfg.Applications {
		bindings := make(map[string]application.Binding, len(cfg.Relationships))
		for rel, target := range cfg.Relationships {
			name, endpoint := parser.RelationshipTarget(target)
			svc, ok := p.services[name]
			if !ok {
				return fmt.Errorf("%w: application %s: relationship %q references undefined service %q",
					errdefs.ErrParser, cfg.Name, rel, name)
			}
			bindings[rel] = application.Binding{Service: svc, Endpoint: endpoint}
		}
		app, err := application.New(cfg, application.Deps{
			Logger:        p.opts.Logger,
			Client:        p.client,
			Metrics:       p.metrics,
			Project:       p.ref(),
			Entropy:       p.identity.Entropy,
			ProjectPath:   p.path,
			Relationships: bindings,
			Routes:        routes,
			Variables:     p.variables,
		})
		if err != nil {
			return err
		}
		p.apps[cfg.Name] = app
		p.appOrder = append(p.appOrder, cfg.Name)
	}
	return nil
}

// UID returns the full project uid.
func (p *Project) UID() string { return p.identity.UID }

// ShortUID returns the uid prefix used in engine names.
func (p *Project) ShortUID() string { return naming.ShortUID(p.identity.UID) }

// Entropy returns the secret seed of derived passwords.
func (p *Project) Entropy() string { return p.identity.Entropy }

// Identity returns the persisted identity.
func (p *Project) Identity() Identity { return p.identity }

// Path returns the project root, empty for recovered projects.
func (p *Project) Path() string { return p.path }

// Recovered reports whether the project was rebuilt from engine labels.
func (p *Project) Recovered() bool { return p.cfg == nil }

// NetworkName returns the project network.
func (p *Project) NetworkName() string {
	name, _ := naming.BuildNetworkName(p.ShortUID())
	return name
}

// Domains returns the domains {all} expands to.
func (p *Project) Domains() []string {
	if len(p.opts.Domains) > 0 {
		return p.opts.Domains
	}
	var out []string
	for _, d := range strings.Split(p.identity.Config[ConfigDomains], ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Services returns the services in name order.
func (p *Project) Services() []*service.Service {
	out := make([]*service.Service, 0, len(p.serviceOrder))
	for _, name := range p.serviceOrder {
		out = append(out, p.services[name])
	}
	return out
}

// Applications returns the applications in declaration order.
func (p *Project) Applications() []*application.Application {
	out := make([]*application.Application, 0, len(p.appOrder))
	for _, name := range p.appOrder {
		out = append(out, p.apps[name])
	}
	return out
}

// Application looks up an application by name.
func (p *Project) Application(name string) (*application.Application, error) {
	app, ok := p.apps[name]
	if !ok {
		return nil, fmt.Errorf("%w: application %q", errdefs.ErrContainerNotFound, name)
	}
	return app, nil
}

// Service looks up a service by name.
func (p *Project) Service(name string) (*service.Service, error) {
	svc, ok := p.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: service %q", errdefs.ErrContainerNotFound, name)
	}
	return svc, nil
}

// Container finds an application or service by name. Recovered projects
// search the containers found in the engine.
func (p *Project) Container(name string) (*container.Container, error) {
	if app, ok := p.apps[name]; ok {
		return app.Container, nil
	}
	if svc, ok := p.services[name]; ok {
		return svc.Container, nil
	}
	for _, c := range p.recovered {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in project %s", errdefs.ErrContainerNotFound, name, p.ShortUID())
}

// Relationships returns the relationship data of an application.
func (p *Project) Relationships(app string) (map[string][]service.Relationship, error) {
	a, err := p.Application(app)
	if err != nil {
		return nil, err
	}
	return a.Relationships(), nil
}

// containers lists every managed container: applications first, then
// services, or the engine's view for recovered projects.
func (p *Project) containers() []*container.Container {
	if p.Recovered() {
		return p.recovered
	}
	out := make([]*container.Container, 0, len(p.apps)+len(p.services))
	for _, app := range p.Applications() {
		out = append(out, app.Container)
	}
	for _, svc := range p.Services() {
		out = append(out, svc.Container)
	}
	return out
}

func (p *Project) requirePath(op string) error {
	if p.path == "" {
		return fmt.Errorf("%w: %s project %s", errdefs.ErrProjectPathNeeded, op, p.ShortUID())
	}
	return nil
}

// Summary describes a project found in the engine.
type Summary struct {
	UID        string `json:"uid"                  yaml:"uid"`
	ShortUID   string `json:"shortUid"             yaml:"shortUid"`
	Path       string `json:"path,omitempty"       yaml:"path,omitempty"`
	Network    string `json:"network"              yaml:"network"`
	Containers int    `json:"containers"           yaml:"containers"`
	Running    int    `json:"running"              yaml:"running"`
	Domains    string `json:"domains,omitempty"    yaml:"domains,omitempty"`
}

// List returns every project with a network in the engine.
func List(ctx context.Context, client ctr.Client) ([]Summary, error) {
	networks, err := client.ListNetworks(ctx, map[string]string{consts.LabelKind: consts.KindProject})
	if err != nil {
		return nil, fmt.Errorf("list project networks: %w", err)
	}
	out := make([]Summary, 0, len(networks))
	for _, n := range networks {
		uid := n.Labels[consts.LabelProjectUID]
		if uid == "" {
			continue
		}
		label := decodeEngineLabel(n.Labels[consts.LabelProjectConfig])
		s := Summary{
			UID:      uid,
			ShortUID: naming.ShortUID(uid),
			Path:     label.Path,
			Network:  n.Name,
			Domains:  label.Config[ConfigDomains],
		}
		infos, err := client.ListContainers(ctx, naming.ProjectFilter(uid))
		if err != nil {
			return nil, fmt.Errorf("list containers of %s: %w", s.ShortUID, err)
		}
		s.Containers = len(infos)
		for _, info := range infos {
			if info.Running {
				s.Running++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortUID < out[j].ShortUID })
	return out, nil
}

// FromEngine rebuilds a project from its network labels, matching ref
// against the full or short uid. Only stop, purge and router removal work
// on the result.
func FromEngine(ctx context.Context, ref string, opts Options) (*Project, error) {
	opts = opts.withDefaults()
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty project reference", errdefs.ErrProjectNotFound)
	}
	networks, err := opts.Client.ListNetworks(ctx, map[string]string{consts.LabelKind: consts.KindProject})
	if err != nil {
		return nil, fmt.Errorf("list project networks: %w", err)
	}
	var matches []ctr.NetworkInfo
	for _, n := range networks {
		uid := n.Labels[consts.LabelProjectUID]
		if uid != "" && (uid == ref || naming.ShortUID(uid) == ref) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", errdefs.ErrProjectNotFound, ref)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s matches %d projects, use the full uid", errdefs.ErrProjectNotFound, ref, len(matches))
	}

	n := matches[0]
	label := decodeEngineLabel(n.Labels[consts.LabelProjectConfig])
	uid := n.Labels[consts.LabelProjectUID]
	p := &Project{
		logger:  opts.Logger.With("project", naming.ShortUID(uid)),
		client:  opts.Client,
		metrics: opts.Metrics,
		opts:    opts,
		identity: Identity{
			UID:     uid,
			Entropy: n.Labels[consts.LabelProjectEntropy],
			Config:  label.Config,
		},
		services: map[string]*service.Service{},
		apps:     map[string]*application.Application{},
	}

	infos, err := opts.Client.ListContainers(ctx, naming.ProjectFilter(uid))
	if err != nil {
		return nil, fmt.Errorf("list containers of %s: %w", p.ShortUID(), err)
	}
	for _, info := range infos {
		name := info.Labels[consts.LabelName]
		kind := info.Labels[consts.LabelKind]
		if name == "" {
			continue
		}
		c, err := container.New(opts.Logger, opts.Client, opts.Metrics, container.Spec{
			Project:       container.ProjectRef{UID: uid},
			Name:          name,
			Kind:          kind,
			BaseImage:     info.Image,
			DisableCommit: kind != consts.KindApplication,
		})
		if err != nil {
			return nil, err
		}
		p.recovered = append(p.recovered, c)
	}
	p.logger.DebugContext(ctx, "project recovered from engine", "containers", len(p.recovered))
	return p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ctr.ErrContainerNotFound) ||
		errors.Is(err, ctr.ErrNetworkNotFound) ||
		errors.Is(err, ctr.ErrVolumeNotFound) ||
		errors.Is(err, ctr.ErrImageNotFound)
}
