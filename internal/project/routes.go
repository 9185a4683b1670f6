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
	"strings"

	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/parser"
	"github.com/eminwux/kuplat/internal/router"
)

// Routes returns the configured routes with hostnames expanded.
func (p *Project) Routes() []parser.Route {
	if p.cfg == nil {
		return nil
	}
	return parser.Expand(p.cfg.Routes, p.ShortUID(), p.Domains())
}

// routesPayload is the PLATFORM_ROUTES document: one entry per concrete
// URL, keyed by the URL with {default} and {all} resolved.
func (p *Project) routesPayload() map[string]any {
	out := map[string]any{}
	for _, r := range p.Routes() {
		for _, host := range r.Hostnames {
			entry := map[string]any{
				"type":         string(r.Type),
				"original_url": r.OriginalURL,
				"primary":      r.Primary,
			}
			if r.ID != "" {
				entry["id"] = r.ID
			}
			switch r.Type {
			case parser.RouteUpstream:
				entry["upstream"] = r.UpstreamApp + ":" + r.UpstreamEndpoint
			case parser.RouteRedirect:
				entry["to"] = parser.ResolveDefault(r.To, p.ShortUID())
			}
			out[r.Scheme+"://"+host+r.Path] = entry
		}
	}
	return out
}

// liveUpstreams maps running applications to the address the router
// proxies to. Applications that are not running are left out.
func (p *Project) liveUpstreams(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for _, app := range p.Applications() {
		running, err := app.IsRunning(ctx)
		if err != nil {
			return nil, err
		}
		if running {
			out[app.Name()] = app.UpstreamAddress()
		}
	}
	return out, nil
}

// RouterConfig compiles the router configuration against the running
// applications.
func (p *Project) RouterConfig(ctx context.Context) ([]byte, []router.Omission, error) {
	if err := p.requirePath("compile routes of"); err != nil {
		return nil, nil, err
	}
	upstreams, err := p.liveUpstreams(ctx)
	if err != nil {
		return nil, nil, err
	}
	return router.Compile(router.CompileInput{
		ShortUID:  p.ShortUID(),
		Domains:   p.Domains(),
		Routes:    p.cfg.Routes,
		Upstreams: upstreams,
	})
}

// registerRouter compiles and installs the project's router configuration.
// Omitted routes are logged and returned.
func (p *Project) registerRouter(ctx context.Context) ([]router.Omission, error) {
	if p.opts.Router == nil {
		return nil, nil
	}
	conf, omissions, err := p.RouterConfig(ctx)
	if err != nil {
		return omissions, err
	}
	for _, o := range omissions {
		p.logger.WarnContext(ctx, "route omitted from router configuration", "route", o.String())
	}
	err = p.opts.Router.Register(ctx, router.Registration{
		ShortUID: p.ShortUID(),
		Network:  p.NetworkName(),
		Config:   conf,
	})
	if err != nil {
		return omissions, err
	}
	p.logger.InfoContext(ctx, "project registered with router", "hosts", strings.Join(p.hostnames(), ","))
	return omissions, nil
}

// Unregister removes the project from the router.
func (p *Project) Unregister(ctx context.Context) error {
	if p.opts.Router == nil {
		return nil
	}
	if err := p.opts.Router.Unregister(ctx, p.ShortUID(), p.NetworkName()); err != nil {
		return fmt.Errorf("%w: unregister %s: %w", errdefs.ErrRouterConfig, p.ShortUID(), err)
	}
	return nil
}

func (p *Project) hostnames() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range p.Routes() {
		for _, h := range r.Hostnames {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	return out
}
