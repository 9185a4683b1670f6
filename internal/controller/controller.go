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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/eminwux/kuplat/internal/application"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/eminwux/kuplat/internal/service"
)

// Options is everything the CLI resolves from flags, environment and the
// config file before a use case runs.
type Options struct {
	DockerHost string
	Platform   string
	Registries []ctr.RegistryCredentials

	// ProjectPath is the project directory; empty means the working directory.
	ProjectPath string
	Domains     []string
	LockDir     string

	Router    router.Options
	Readiness service.ReadinessPolicy

	// SSHKeyFile is a private key installed while applications build.
	SSHKeyFile string
	KnownHosts []string

	// MetricsTextfile receives the collected metrics on Close.
	MetricsTextfile string
}

// Exec runs the CLI use cases against one engine connection.
type Exec struct {
	ctx     context.Context
	logger  *slog.Logger
	opts    Options
	client  ctr.Client
	metrics *metrics.Metrics

	connected bool
	router    *router.Router
}

// NewControllerExec returns an Exec backed by the Docker engine.
func NewControllerExec(ctx context.Context, logger *slog.Logger, opts Options) *Exec {
	client := ctr.NewClient(logger, ctr.Options{
		Host:       opts.DockerHost,
		Platform:   opts.Platform,
		Registries: opts.Registries,
	})
	return NewControllerExecWithClient(ctx, logger, opts, client)
}

// NewControllerExecWithClient returns an Exec using the given engine client.
func NewControllerExecWithClient(ctx context.Context, logger *slog.Logger, opts Options, client ctr.Client) *Exec {
	return &Exec{
		ctx:     ctx,
		logger:  logger,
		opts:    opts,
		client:  client,
		metrics: metrics.New(),
	}
}

// Metrics exposes the collectors of this run.
func (b *Exec) Metrics() *metrics.Metrics { return b.metrics }

// Close writes the metrics textfile when configured and releases the
// engine connection.
func (b *Exec) Close() error {
	if err := b.metrics.WriteTextfile(b.opts.MetricsTextfile); err != nil {
		b.logger.WarnContext(b.ctx, "failed to write metrics", "error", err)
	}
	if !b.connected {
		return nil
	}
	b.connected = false
	return b.client.Close()
}

func (b *Exec) connect() error {
	if b.connected {
		return nil
	}
	if err := b.client.Connect(b.ctx); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConnectEngine, err)
	}
	if err := b.client.Ping(b.ctx); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConnectEngine, err)
	}
	b.connected = true
	return nil
}

func (b *Exec) getRouter() (*router.Router, error) {
	if b.router != nil {
		return b.router, nil
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	r, err := router.New(b.logger, b.client, b.metrics, b.opts.Router)
	if err != nil {
		return nil, err
	}
	b.router = r
	return r, nil
}

func (b *Exec) projectPath() (string, error) {
	if p := strings.TrimSpace(b.opts.ProjectPath); p != "" {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errdefs.ErrInit, err)
	}
	return wd, nil
}

func (b *Exec) projectOptions() (project.Options, error) {
	r, err := b.getRouter()
	if err != nil {
		return project.Options{}, err
	}
	build := application.BuildOptions{KnownHosts: b.opts.KnownHosts}
	if b.opts.SSHKeyFile != "" {
		key, readErr := os.ReadFile(b.opts.SSHKeyFile)
		if readErr != nil {
			return project.Options{}, fmt.Errorf("%w: read ssh key: %w", errdefs.ErrConfig, readErr)
		}
		build.SSHKey = key
	}
	return project.Options{
		Logger:    b.logger,
		Client:    b.client,
		Metrics:   b.metrics,
		Router:    r,
		Readiness: b.opts.Readiness,
		Domains:   b.opts.Domains,
		Build:     build,
		LockDir:   b.opts.LockDir,
	}, nil
}

// loadProject loads the project at the configured path.
func (b *Exec) loadProject() (*project.Project, error) {
	path, err := b.projectPath()
	if err != nil {
		return nil, err
	}
	opts, err := b.projectOptions()
	if err != nil {
		return nil, err
	}
	return project.Load(b.ctx, path, opts)
}

// resolveProject recovers the project named by ref from the engine, or
// loads the one at the configured path when ref is empty.
func (b *Exec) resolveProject(ref string) (*project.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return b.loadProject()
	}
	opts, err := b.projectOptions()
	if err != nil {
		return nil, err
	}
	return project.FromEngine(b.ctx, ref, opts)
}
