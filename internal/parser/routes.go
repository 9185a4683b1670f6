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

package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/errdefs"
)

// RouteType is either upstream or redirect.
type RouteType string

const (
	RouteUpstream RouteType = "upstream"
	RouteRedirect RouteType = "redirect"
)

const (
	// TokenDefault is replaced with the project's default domain.
	TokenDefault = "{default}"
	// TokenAll expands to every domain configured for the project.
	TokenAll = "{all}"
)

// RouteConfig is one routes.yaml entry as written.
type RouteConfig struct {
	Type      RouteType       `yaml:"type"      json:"type"`
	Upstream  string          `yaml:"upstream"  json:"upstream,omitempty"`
	To        string          `yaml:"to"        json:"to,omitempty"`
	ID        string          `yaml:"id"        json:"id,omitempty"`
	Primary   bool            `yaml:"primary"   json:"primary,omitempty"`
	Redirects RedirectsConfig `yaml:"redirects" json:"redirects,omitempty"`
	Cache     ToggleConfig    `yaml:"cache"     json:"cache,omitempty"`
	SSI       ToggleConfig    `yaml:"ssi"       json:"ssi,omitempty"`
}

// RedirectsConfig holds path-level redirects of an upstream route.
type RedirectsConfig struct {
	Expires string                  `yaml:"expires" json:"expires,omitempty"`
	Paths   map[string]PathRedirect `yaml:"paths"   json:"paths,omitempty"`
}

// PathRedirect is one redirects.paths entry.
type PathRedirect struct {
	To     string `yaml:"to"     json:"to"`
	Code   int    `yaml:"code"   json:"code,omitempty"`
	Prefix *bool  `yaml:"prefix" json:"prefix,omitempty"`
	Regexp bool   `yaml:"regexp" json:"regexp,omitempty"`
}

// IsPrefix reports whether the redirect matches sub-paths, defaulting to true.
func (p PathRedirect) IsPrefix() bool {
	return p.Prefix == nil || *p.Prefix
}

// StatusCode returns the redirect status, defaulting to 301.
func (p PathRedirect) StatusCode() int {
	if p.Code == 0 {
		return 301
	}
	return p.Code
}

// ToggleConfig is an {enabled: bool} block.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Route is a validated route with its URL split apart. Hostnames is filled
// by Expand.
type Route struct {
	OriginalURL      string          `json:"original_url"`
	Scheme           string          `json:"scheme"`
	Host             string          `json:"host"`
	Hostnames        []string        `json:"hostnames,omitempty"`
	Path             string          `json:"path"`
	Type             RouteType       `json:"type"`
	Upstream         string          `json:"upstream,omitempty"`
	UpstreamApp      string          `json:"-"`
	UpstreamEndpoint string          `json:"-"`
	To               string          `json:"to,omitempty"`
	ID               string          `json:"id,omitempty"`
	Primary          bool            `json:"primary,omitempty"`
	Redirects        RedirectsConfig `json:"redirects,omitempty"`
	Cache            ToggleConfig    `json:"cache"`
	SSI              ToggleConfig    `json:"ssi"`
}

// ParseRoutes reads .platform/routes.yaml. Without the file a single
// https://{default}/ route to defaultUpstream is produced.
func ParseRoutes(root, defaultUpstream string) ([]Route, error) {
	file := filepath.Join(root, consts.PlatformDir, consts.RoutesFile)
	raw := map[string]RouteConfig{}
	found, err := readYAML(file, &raw)
	if err != nil {
		return nil, err
	}
	if !found && defaultUpstream != "" {
		raw["https://"+TokenDefault+"/"] = RouteConfig{
			Type:     RouteUpstream,
			Upstream: defaultUpstream + ":http",
		}
	}
	return BuildRoutes(file, raw)
}

// BuildRoutes validates raw route entries and returns them ordered by URL.
func BuildRoutes(file string, raw map[string]RouteConfig) ([]Route, error) {
	urls := make([]string, 0, len(raw))
	for u := range raw {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	routes := make([]Route, 0, len(urls))
	for _, u := range urls {
		r, err := buildRoute(u, raw[u])
		if err != nil {
			return nil, &ConfigError{File: file, Name: u, Err: err}
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func buildRoute(rawURL string, cfg RouteConfig) (Route, error) {
	scheme, host, path, err := SplitRouteURL(rawURL)
	if err != nil {
		return Route{}, err
	}
	r := Route{
		OriginalURL: rawURL,
		Scheme:      scheme,
		Host:        host,
		Path:        path,
		Type:        cfg.Type,
		Upstream:    cfg.Upstream,
		To:          cfg.To,
		ID:          cfg.ID,
		Primary:     cfg.Primary,
		Redirects:   cfg.Redirects,
		Cache:       cfg.Cache,
		SSI:         cfg.SSI,
	}
	switch r.Type {
	case RouteUpstream:
		if r.Upstream == "" {
			return Route{}, fmt.Errorf("%w: upstream route requires 'upstream'", errdefs.ErrInvalidRoute)
		}
		app, endpoint, _ := strings.Cut(r.Upstream, ":")
		if endpoint == "" {
			endpoint = "http"
		}
		r.UpstreamApp, r.UpstreamEndpoint = app, endpoint
		for from, to := range r.Redirects.Paths {
			if to.To == "" {
				return Route{}, fmt.Errorf("%w: redirect for path %q requires 'to'", errdefs.ErrInvalidRoute, from)
			}
		}
	case RouteRedirect:
		if r.To == "" {
			return Route{}, fmt.Errorf("%w: redirect route requires 'to'", errdefs.ErrInvalidRoute)
		}
	default:
		return Route{}, fmt.Errorf("%w: unknown route type %q", errdefs.ErrInvalidRoute, r.Type)
	}
	return r, nil
}

// SplitRouteURL splits a route URL into scheme, host template and path. Hosts
// may contain {default} and {all}, which net/url rejects.
func SplitRouteURL(rawURL string) (string, string, string, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", "", fmt.Errorf("%w: route %q has no scheme", errdefs.ErrInvalidRoute, rawURL)
	}
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", "", fmt.Errorf("%w: route %q has unsupported scheme %q", errdefs.ErrInvalidRoute, rawURL, scheme)
	}
	host, path, found := strings.Cut(rest, "/")
	if host == "" {
		return "", "", "", fmt.Errorf("%w: route %q has no host", errdefs.ErrInvalidRoute, rawURL)
	}
	path = "/" + path
	if !found {
		path = "/"
	}
	return scheme, strings.ToLower(host), path, nil
}

// ResolveDefault replaces {default} in s with the project's default domain.
func ResolveDefault(s, defaultDomain string) string {
	return strings.ReplaceAll(s, TokenDefault, defaultDomain)
}

// ExpandHost turns a host template into concrete hostnames. {all} yields one
// hostname per domain, or the default domain when none are configured.
func ExpandHost(host, defaultDomain string, domains []string) []string {
	host = ResolveDefault(host, defaultDomain)
	if !strings.Contains(host, TokenAll) {
		return []string{host}
	}
	if len(domains) == 0 {
		domains = []string{defaultDomain}
	}
	out := make([]string, 0, len(domains))
	seen := map[string]struct{}{}
	for _, d := range domains {
		h := strings.ReplaceAll(host, TokenAll, strings.ToLower(strings.TrimSpace(d)))
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Expand returns copies of routes with Hostnames filled in.
func Expand(routes []Route, defaultDomain string, domains []string) []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Hostnames = ExpandHost(r.Host, defaultDomain, domains)
		out = append(out, r)
	}
	return out
}
