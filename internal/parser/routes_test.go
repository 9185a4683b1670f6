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

package parser_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/parser"
)

func TestSplitRouteURL(t *testing.T) {
	tests := []struct {
		in                 string
		scheme, host, path string
		wantErr            bool
	}{
		{in: "https://{default}/", scheme: "https", host: "{default}", path: "/"},
		{in: "http://www.{all}", scheme: "http", host: "www.{all}", path: "/"},
		{in: "HTTPS://Api.{default}.example.com/v1", scheme: "https", host: "api.{default}.example.com", path: "/v1"},
		{in: "ftp://x/", wantErr: true},
		{in: "no-scheme/", wantErr: true},
		{in: "https:///path", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			scheme, host, path, err := parser.SplitRouteURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errdefs.ErrInvalidRoute) {
					t.Fatalf("expected ErrInvalidRoute, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scheme != tt.scheme || host != tt.host || path != tt.path {
				t.Errorf("got %q %q %q", scheme, host, path)
			}
		})
	}
}

func TestBuildRoutes(t *testing.T) {
	routes, err := parser.BuildRoutes("routes.yaml", map[string]parser.RouteConfig{
		"https://{default}/": {
			Type:     parser.RouteUpstream,
			Upstream: "app:http",
			Redirects: parser.RedirectsConfig{
				Paths: map[string]parser.PathRedirect{"/old": {To: "/new"}},
			},
		},
		"http://www.{default}/": {Type: parser.RouteRedirect, To: "https://{default}/"},
	})
	if err != nil {
		t.Fatalf("BuildRoutes failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Type != parser.RouteRedirect || routes[0].To != "https://{default}/" {
		t.Errorf("first route = %+v", routes[0])
	}
	up := routes[1]
	if up.UpstreamApp != "app" || up.UpstreamEndpoint != "http" {
		t.Errorf("upstream = %q/%q", up.UpstreamApp, up.UpstreamEndpoint)
	}
	redirect := up.Redirects.Paths["/old"]
	if !redirect.IsPrefix() || redirect.StatusCode() != 301 {
		t.Errorf("redirect defaults = %+v", redirect)
	}
}

func TestBuildRoutes_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  parser.RouteConfig
	}{
		{"redirect without to", parser.RouteConfig{Type: parser.RouteRedirect}},
		{"upstream without upstream", parser.RouteConfig{Type: parser.RouteUpstream}},
		{"unknown type", parser.RouteConfig{Type: "proxy", Upstream: "app:http"}},
		{"path redirect without to", parser.RouteConfig{
			Type:      parser.RouteUpstream,
			Upstream:  "app:http",
			Redirects: parser.RedirectsConfig{Paths: map[string]parser.PathRedirect{"/a": {}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.BuildRoutes("routes.yaml", map[string]parser.RouteConfig{"https://{default}/": tt.cfg})
			if !errors.Is(err, errdefs.ErrParser) {
				t.Fatalf("expected ErrParser, got %v", err)
			}
			var cfgErr *parser.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Name != "https://{default}/" {
				t.Fatalf("expected ConfigError naming the route, got %v", err)
			}
		})
	}
}

func TestParseRoutes_File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".platform/routes.yaml", `
"https://{default}/":
  type: upstream
  upstream: "app:http"
  cache:
    enabled: true
"https://www.{default}/":
  type: redirect
  to: "https://{default}/"
`)
	routes, err := parser.ParseRoutes(dir, "ignored")
	if err != nil {
		t.Fatalf("ParseRoutes failed: %v", err)
	}
	// "www" sorts before "{".
	if len(routes) != 2 || routes[0].Type != parser.RouteRedirect || !routes[1].Cache.Enabled {
		t.Fatalf("unexpected routes: %+v", routes)
	}
}

func TestParseRoutes_NoFileNoApps(t *testing.T) {
	routes, err := parser.ParseRoutes(t.TempDir(), "")
	if err != nil || len(routes) != 0 {
		t.Fatalf("expected no routes, got %+v, %v", routes, err)
	}
}

func TestExpandHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		domains []string
		want    []string
	}{
		{"default only", "{default}", nil, []string{"abc123"}},
		{"default subdomain", "{default}.example.com", nil, []string{"abc123.example.com"}},
		{"all with domains", "www.{all}", []string{"a.test", "B.test", "a.test"}, []string{"www.a.test", "www.b.test"}},
		{"all without domains", "{all}", nil, []string{"abc123"}},
		{"literal", "static.example.com", []string{"x"}, []string{"static.example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.ExpandHost(tt.host, "abc123", tt.domains)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandHost = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	routes := []parser.Route{{Host: "{default}.example.com"}, {Host: "{all}"}}
	got := parser.Expand(routes, "abc123", []string{"one.test", "two.test"})
	if !reflect.DeepEqual(got[0].Hostnames, []string{"abc123.example.com"}) {
		t.Errorf("first = %v", got[0].Hostnames)
	}
	if !reflect.DeepEqual(got[1].Hostnames, []string{"one.test", "two.test"}) {
		t.Errorf("second = %v", got[1].Hostnames)
	}
	if routes[0].Hostnames != nil {
		t.Errorf("Expand must not mutate its input")
	}
}
