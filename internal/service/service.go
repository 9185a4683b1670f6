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

// Package service implements backing services (databases, caches, queues,
// search) on top of the container abstraction.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/eminwux/kuplat/internal/parser"
)

// Deps carries what every service needs from its project.
type Deps struct {
	Logger  *slog.Logger
	Client  ctr.Client
	Metrics *metrics.Metrics
	Project container.ProjectRef
	Entropy string
}

// Service is one backing service container.
type Service struct {
	*container.Container

	cfg     parser.ServiceConfig
	desc    Descriptor
	version string
	group   Group
	uid     string
	entropy string
	metrics *metrics.Metrics
}

// New resolves cfg against the type registry and builds the service.
func New(cfg parser.ServiceConfig, deps Deps) (*Service, error) {
	desc, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q (service %s)", errdefs.ErrUnknownServiceType, cfg.Type, cfg.Name)
	}
	version := cfg.Version
	if version == "" {
		version = desc.DefaultVersion
	}
	image, ok := desc.Images[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s (service %s)", errdefs.ErrUnsupportedVersion, cfg.Type, version, cfg.Name)
	}
	group := desc.Group
	if cfg.Group != "" {
		g, err := ParseGroup(cfg.Group)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", cfg.Name, err)
		}
		group = g
	}

	s := &Service{
		cfg:     cfg,
		desc:    desc,
		version: version,
		group:   group,
		uid:     deps.Project.UID,
		entropy: deps.Entropy,
		metrics: deps.Metrics,
	}
	s.cfg.Type = desc.Type
	s.cfg.Version = version

	spec := container.Spec{
		Project:       deps.Project,
		Name:          cfg.Name,
		Kind:          consts.KindService,
		BaseImage:     image,
		DisableCommit: true,
		Cmd:           desc.handler.command(s),
		Env:           desc.handler.env(s),
		Volumes:       desc.handler.volumes(s),
		Aliases:       []string{cfg.Name, s.Host()},
		ExtraHosts:    []string{"host.docker.internal:host-gateway"},
	}
	c, err := container.New(deps.Logger, deps.Client, deps.Metrics, spec)
	if err != nil {
		return nil, err
	}
	s.Container = c
	return s, nil
}

// Config returns the parsed configuration with type and version resolved.
func (s *Service) Config() parser.ServiceConfig { return s.cfg }

// Type returns the registry type ("mariadb").
func (s *Service) Type() string { return s.desc.Type }

// Version returns the resolved version.
func (s *Service) Version() string { return s.version }

// TypeVersion returns "type:version".
func (s *Service) TypeVersion() string { return s.desc.Type + ":" + s.version }

// Group returns the startup group.
func (s *Service) Group() Group { return s.group }

// Host is the name applications use to reach the service.
func (s *Service) Host() string { return s.cfg.Name + ".internal" }

// Password derives the password of user for this service.
func (s *Service) Password(user string) string {
	return DerivePassword(PasswordSalt, user, s.cfg.Name, s.entropy, s.uid)
}

// Endpoints lists the endpoints applications can bind to.
func (s *Service) Endpoints() []string {
	return s.desc.handler.endpoints(s)
}

// ServiceData returns the connection descriptor for endpoint.
func (s *Service) ServiceData(endpoint string) (Relationship, error) {
	rel, err := s.desc.handler.serviceData(s, endpoint)
	if err != nil {
		return Relationship{}, err
	}
	rel.Service = s.cfg.Name
	rel.Type = s.TypeVersion()
	rel.Host = s.Host()
	rel.Hostname = s.Host()
	rel.Cluster = naming.ShortUID(s.uid) + "-" + consts.DefaultBranch
	rel.Public = false
	if rel.Rel == "" {
		rel.Rel = endpoint
	}
	return rel, nil
}

// Up starts the service, waits for readiness and provisions it. Provisioning
// is idempotent and runs on every Up, so a start that failed after create is
// completed by the next one.
func (s *Service) Up(ctx context.Context, policy ReadinessPolicy) error {
	created, err := s.Start(ctx)
	if err != nil {
		return err
	}
	if err = s.WaitReady(ctx, policy); err != nil {
		return err
	}
	s.Logger().InfoContext(ctx, "provisioning service",
		"service", s.cfg.Name, "type", s.TypeVersion(), "created", created)
	return s.desc.handler.provision(ctx, s)
}

// Provision runs the type's idempotent post-start setup.
func (s *Service) Provision(ctx context.Context) error {
	return s.desc.handler.provision(ctx, s)
}

// endpointNames returns the declared endpoints or fallback when none are declared.
func (s *Service) endpointNames(fallback string) []string {
	if names := s.cfg.EndpointNames(); len(names) > 0 {
		return names
	}
	return []string{fallback}
}

// endpointConfig returns the endpoint configuration, synthesising the
// default endpoint when none are declared.
func (s *Service) endpointConfig(name, fallback string) (parser.EndpointConfig, error) {
	if len(s.cfg.Configuration.Endpoints) == 0 {
		if name != "" && name != fallback {
			return parser.EndpointConfig{}, s.unknownEndpoint(name)
		}
		schema := s.schemas()[0]
		return parser.EndpointConfig{
			DefaultSchema: schema,
			Privileges:    map[string]string{schema: "admin"},
		}, nil
	}
	ep, ok := s.cfg.Configuration.Endpoints[name]
	if !ok {
		return parser.EndpointConfig{}, s.unknownEndpoint(name)
	}
	return ep, nil
}

func (s *Service) unknownEndpoint(name string) error {
	return fmt.Errorf("%w: service %s has no endpoint %q (available: %s)",
		errdefs.ErrParser, s.cfg.Name, name, strings.Join(s.Endpoints(), ", "))
}

func (s *Service) schemas() []string {
	if len(s.cfg.Configuration.Schemas) == 0 {
		return []string{parser.DefaultSchema}
	}
	return s.cfg.Configuration.Schemas
}
