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

// Package application implements runnable workloads: their environment,
// build and deploy hooks and the web server fragment nginx serves them with.
package application

import (
	"context"
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/parser"
	"github.com/eminwux/kuplat/internal/service"
	"github.com/opencontainers/go-digest"
)

// Dependency is the part of a service an application relies on.
type Dependency interface {
	Name() string
	ContainerName() string
	IsRunning(ctx context.Context) (bool, error)
	ServiceData(endpoint string) (service.Relationship, error)
}

// Binding resolves one relationship to a service endpoint.
type Binding struct {
	Service  Dependency
	Endpoint string
}

// Deps carries what every application needs from its project.
type Deps struct {
	Logger  *slog.Logger
	Client  ctr.Client
	Metrics *metrics.Metrics
	Project container.ProjectRef
	Entropy string
	// ProjectPath is bind-mounted read-only for builds. Empty for projects
	// recovered from the engine.
	ProjectPath string
	// Relationships maps relationship names to resolved services.
	Relationships map[string]Binding
	// Routes is the PLATFORM_ROUTES payload.
	Routes map[string]any
	// Variables are the project variables; "env:" prefixed ones become
	// environment variables.
	Variables map[string]string
}

// Application is one application container.
type Application struct {
	*container.Container

	cfg           parser.ApplicationConfig
	desc          Descriptor
	version       string
	relationships map[string]Binding
	relData       map[string][]service.Relationship
	hasSource     bool
	metrics       *metrics.Metrics
}

// New resolves cfg against the runtime registry and builds the application.
// Relationship endpoints are resolved here so misconfigured endpoints fail
// before anything is started.
func New(cfg parser.ApplicationConfig, deps Deps) (*Application, error) {
	desc, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q (application %s)", errdefs.ErrUnknownApplicationType, cfg.Type, cfg.Name)
	}
	version := cfg.Version
	if version == "" {
		version = desc.DefaultVersion
	}
	image, ok := desc.Images[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s (application %s)", errdefs.ErrUnsupportedVersion, cfg.Type, version, cfg.Name)
	}

	a := &Application{
		cfg:           cfg,
		desc:          desc,
		version:       version,
		relationships: deps.Relationships,
		relData:       map[string][]service.Relationship{},
		hasSource:     deps.ProjectPath != "",
		metrics:       deps.Metrics,
	}
	a.cfg.Type = desc.Type
	a.cfg.Version = version

	for _, rel := range a.RelationshipNames() {
		binding := deps.Relationships[rel]
		if binding.Service == nil {
			return nil, fmt.Errorf("%w: application %s: relationship %q is not resolved",
				errdefs.ErrParser, cfg.Name, rel)
		}
		data, err := binding.Service.ServiceData(binding.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("application %s: relationship %q: %w", cfg.Name, rel, err)
		}
		a.relData[rel] = []service.Relationship{data}
	}

	configDigest, err := a.computeDigest()
	if err != nil {
		return nil, err
	}
	env, err := a.environment(deps)
	if err != nil {
		return nil, err
	}

	spec := container.Spec{
		Project:      deps.Project,
		Name:         cfg.Name,
		Kind:         consts.KindApplication,
		BaseImage:    image,
		Entrypoint:   []string{"sh", "-c"},
		Cmd:          []string{a.entryScript()},
		Env:          env,
		Volumes:      a.mountVolumes(),
		WorkingDir:   consts.AppDir,
		Aliases:      []string{cfg.Name, cfg.Name + ".internal"},
		ExtraHosts:   []string{"host.docker.internal:host-gateway"},
		ConfigDigest: configDigest,
	}
	if a.hasSource {
		spec.Binds = []ctr.Mount{{
			Source:   deps.ProjectPath,
			Target:   consts.SourceMountPath,
			Bind:     true,
			ReadOnly: true,
		}}
	}
	c, err := container.New(deps.Logger, deps.Client, deps.Metrics, spec)
	if err != nil {
		return nil, err
	}
	a.Container = c
	return a, nil
}

// Config returns the parsed configuration with type and version resolved.
func (a *Application) Config() parser.ApplicationConfig { return a.cfg }

// Type returns the runtime ("php").
func (a *Application) Type() string { return a.desc.Type }

// Version returns the resolved runtime version.
func (a *Application) Version() string { return a.version }

// TypeVersion returns "type:version".
func (a *Application) TypeVersion() string { return a.desc.Type + ":" + a.version }

// RelationshipNames lists declared relationships in name order.
func (a *Application) RelationshipNames() []string {
	names := make([]string, 0, len(a.cfg.Relationships))
	for rel := range a.cfg.Relationships {
		names = append(names, rel)
	}
	sort.Strings(names)
	return names
}

// Relationships returns the connection data exposed as PLATFORM_RELATIONSHIPS.
func (a *Application) Relationships() map[string][]service.Relationship {
	return a.relData
}

// UpstreamAddress is the address the router proxies to.
func (a *Application) UpstreamAddress() string {
	return fmt.Sprintf("%s:%d", a.Address(), consts.AppHTTPPort)
}

// Start verifies every related service is running, then starts the
// container. A missing dependency fails with errdefs.ErrDependency before
// anything is created.
func (a *Application) Start(ctx context.Context) (bool, error) {
	if err := a.CheckDependencies(ctx); err != nil {
		return false, err
	}
	created, err := a.Container.Start(ctx)
	if err != nil {
		return created, err
	}
	provisioned, err := a.IsProvisioned(ctx)
	if err != nil {
		return created, err
	}
	if provisioned {
		if err = a.configureWeb(ctx); err != nil {
			return created, err
		}
	}
	return created, nil
}

// CheckDependencies fails with a state error naming the first related
// service that is not running.
func (a *Application) CheckDependencies(ctx context.Context) error {
	for _, rel := range a.RelationshipNames() {
		svc := a.relationships[rel].Service
		running, err := svc.IsRunning(ctx)
		if err != nil {
			return fmt.Errorf("check dependency %s: %w", svc.Name(), err)
		}
		if !running {
			return errdefs.NewStateError(a.ContainerName(), "start",
				fmt.Errorf("%w: relationship %q needs service %s (%s) running",
					errdefs.ErrDependency, rel, svc.Name(), svc.ContainerName()))
		}
	}
	return nil
}

// Up brings the application to a deployed state: it builds when there is
// no commit image, otherwise starts the cached image, and runs the deploy
// hook whenever a new container came up.
func (a *Application) Up(ctx context.Context, opts BuildOptions) error {
	provisioned, err := a.IsProvisioned(ctx)
	if err != nil {
		return err
	}
	if !provisioned {
		if err = a.CheckDependencies(ctx); err != nil {
			return err
		}
		if _, err = a.Build(ctx, opts); err != nil {
			return err
		}
		if err = a.configureWeb(ctx); err != nil {
			return err
		}
		return a.Deploy(ctx)
	}
	created, err := a.Start(ctx)
	if err != nil {
		return err
	}
	if created {
		return a.Deploy(ctx)
	}
	return nil
}

// entryScript starts nginx when installed and then the application process.
// Before the first build neither exists and the container idles.
func (a *Application) entryScript() string {
	start := a.cfg.Web.Commands.Start
	if start == "" {
		start = a.desc.DefaultStart
	}
	script := "command -v nginx >/dev/null 2>&1 && nginx; "
	if start == "" {
		return script + "exec tail -f /dev/null"
	}
	return script + fmt.Sprintf("if [ -f %s ]; then cd %s && exec %s; fi; exec tail -f /dev/null",
		builtMarker, consts.AppDir, start)
}

// mountVolumes returns one volume per declared mount.
func (a *Application) mountVolumes() map[string]string {
	if len(a.cfg.Mounts) == 0 {
		return nil
	}
	out := make(map[string]string, len(a.cfg.Mounts))
	for mountPath := range a.cfg.Mounts {
		out[mountVolumeName(mountPath)] = path.Join(consts.AppDir, mountPath)
	}
	return out
}

// mountVolumeName turns "web/uploads" into "mount-web-uploads".
func mountVolumeName(mountPath string) string {
	clean := strings.Trim(path.Clean("/"+mountPath), "/")
	if clean == "" {
		return "mount-root"
	}
	return "mount-" + strings.NewReplacer("/", "-", " ", "-").Replace(clean)
}

// sourceDir is the application directory inside the source bind mount.
func (a *Application) sourceDir() string {
	root := filepath.ToSlash(a.cfg.Root)
	if root == "" || root == "." {
		return consts.SourceMountPath
	}
	return path.Join(consts.SourceMountPath, root)
}

// computeDigest fingerprints everything that ends up in the commit image.
func (a *Application) computeDigest() (digest.Digest, error) {
	payload, err := json.Marshal(struct {
		Type    string                   `json:"type"`
		Version string                   `json:"version"`
		Config  parser.ApplicationConfig `json:"config"`
	}{a.desc.Type, a.version, a.cfg})
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", a.cfg.Name, err)
	}
	return digest.FromBytes(payload), nil
}
