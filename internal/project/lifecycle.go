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
	"path/filepath"
	"slices"

	"github.com/eminwux/kuplat/internal/application"
	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/lock"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/eminwux/kuplat/internal/service"
	"github.com/hashicorp/go-multierror"
)

// Lock takes the project's advisory lock. Every mutating operation holds it.
func (p *Project) Lock() (*lock.Lock, error) {
	dir := p.opts.LockDir
	if dir == "" {
		dir = lock.RuntimeDir()
	}
	return lock.Acquire(filepath.Join(dir, p.identity.UID+".lock"))
}

func (p *Project) withLock(fn func() error) error {
	l, err := p.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := l.Release(); relErr != nil {
			p.logger.Warn("failed to release project lock", "error", relErr)
		}
	}()
	return fn()
}

// StartReport describes a finished start.
type StartReport struct {
	Omissions []router.Omission `json:"omissions,omitempty" yaml:"omissions,omitempty"`
}

// Start brings the whole project up: pre-app services, applications,
// post-app services, then router registration. Nothing is rolled back when
// a step fails.
func (p *Project) Start(ctx context.Context) (StartReport, error) {
	var report StartReport
	if err := p.requirePath("start"); err != nil {
		return report, err
	}
	err := p.withLock(func() error {
		if err := p.startGroups(ctx, service.PreAppGroups); err != nil {
			return err
		}
		for _, app := range p.Applications() {
			p.logger.InfoContext(ctx, "starting application", "app", app.Name())
			if err := app.Up(ctx, p.opts.Build); err != nil {
				return err
			}
		}
		if err := p.startGroups(ctx, service.PostAppGroups); err != nil {
			return err
		}
		omissions, err := p.registerRouter(ctx)
		report.Omissions = omissions
		return err
	})
	return report, err
}

// startGroups starts the services of each group in turn, one at a time.
func (p *Project) startGroups(ctx context.Context, groups []service.Group) error {
	for _, group := range groups {
		for _, svc := range p.Services() {
			if svc.Group() != group {
				continue
			}
			p.logger.InfoContext(ctx, "starting service",
				"service", svc.Name(), "type", svc.TypeVersion(), "group", group.String())
			if err := svc.Up(ctx, p.opts.Readiness); err != nil {
				return err
			}
		}
	}
	return nil
}

// stopOrder is applications first, then post-app services, then pre-app
// services, each group in reverse start order.
func (p *Project) stopOrder() []*container.Container {
	if p.Recovered() {
		out := slices.Clone(p.recovered)
		slices.SortStableFunc(out, func(a, b *container.Container) int {
			return kindRank(a.Kind()) - kindRank(b.Kind())
		})
		return out
	}
	var out []*container.Container
	for _, app := range slices.Backward(p.Applications()) {
		out = append(out, app.Container)
	}
	groups := append(slices.Clone(service.PreAppGroups), service.PostAppGroups...)
	for _, group := range slices.Backward(groups) {
		for _, svc := range p.Services() {
			if svc.Group() == group {
				out = append(out, svc.Container)
			}
		}
	}
	return out
}

func kindRank(kind string) int {
	if kind == consts.KindApplication {
		return 0
	}
	return 1
}

// Stop deregisters the project from the router and stops every container.
// Failures are collected and the remaining containers are still stopped.
func (p *Project) Stop(ctx context.Context) error {
	return p.withLock(func() error {
		return p.stop(ctx)
	})
}

func (p *Project) stop(ctx context.Context) error {
	var result *multierror.Error
	for _, c := range p.stopOrder() {
		if err := c.Stop(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to stop container", "container", c.ContainerName(), "error", err)
			result = multierror.Append(result, err)
		}
	}
	if err := p.Unregister(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Restart stops and starts the project.
func (p *Project) Restart(ctx context.Context) (StartReport, error) {
	if err := p.requirePath("restart"); err != nil {
		return StartReport{}, err
	}
	if err := p.Stop(ctx); err != nil {
		return StartReport{}, err
	}
	return p.Start(ctx)
}

func (p *Project) selectApplications(names []string) ([]*application.Application, error) {
	if len(names) == 0 {
		return p.Applications(), nil
	}
	out := make([]*application.Application, 0, len(names))
	for _, name := range names {
		app, err := p.Application(name)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

// BuildReport is the outcome of one application build.
type BuildReport struct {
	Application string `json:"application"         yaml:"application"`
	Image       string `json:"image"               yaml:"image"`
	HookError   string `json:"hookError,omitempty" yaml:"hookError,omitempty"`
}

// Build rebuilds the named applications, or all of them, from their base
// images. Rebuilding is always explicit.
func (p *Project) Build(ctx context.Context, names []string) ([]BuildReport, error) {
	if err := p.requirePath("build"); err != nil {
		return nil, err
	}
	apps, err := p.selectApplications(names)
	if err != nil {
		return nil, err
	}
	var reports []BuildReport
	err = p.withLock(func() error {
		for _, app := range apps {
			res, err := app.Build(ctx, p.opts.Build)
			if err != nil {
				return err
			}
			r := BuildReport{Application: app.Name(), Image: app.CommitImage()}
			if res.HookError != nil {
				r.HookError = res.HookError.Error()
			}
			reports = append(reports, r)
		}
		return nil
	})
	return reports, err
}

// Deploy runs the deploy hook of the named applications, or all of them.
func (p *Project) Deploy(ctx context.Context, names []string) error {
	if err := p.requirePath("deploy"); err != nil {
		return err
	}
	apps, err := p.selectApplications(names)
	if err != nil {
		return err
	}
	return p.withLock(func() error {
		for _, app := range apps {
			if err := app.Deploy(ctx); err != nil {
				return fmt.Errorf("application %s: %w", app.Name(), err)
			}
		}
		return nil
	})
}
