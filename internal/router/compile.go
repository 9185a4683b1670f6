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

package router

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/parser"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"

	// dockerResolver is the engine's embedded DNS, reachable from every
	// user-defined network.
	dockerResolver = "127.0.0.11"
)

// CompileInput is everything the compiler needs about one project.
type CompileInput struct {
	ShortUID string
	// Domains expand the {all} token; the short uid is the default domain.
	Domains []string
	Routes  []parser.Route
	// Upstreams maps application names to "host:port" on the project network.
	Upstreams map[string]string
}

// Omission is a route left out of the compiled configuration.
type Omission struct {
	Route    string `json:"route"              yaml:"route"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Reason   string `json:"reason"             yaml:"reason"`
}

func (o Omission) String() string {
	if o.Hostname == "" {
		return fmt.Sprintf("%s: %s", o.Route, o.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", o.Route, o.Hostname, o.Reason)
}

type redirectRule struct {
	Match   string
	Code    int
	Target  string
	Expires string
}

type locationBlock struct {
	Path      string
	Redirects []redirectRule
	// Upstream is set for proxied locations, RedirectTo for redirect routes.
	Upstream   string
	RedirectTo string
	Cache      bool
	SSI        bool
}

type serverBlock struct {
	Scheme    string
	Names     string
	Locations []locationBlock
	ParityTo  string
	CertPath  string
	KeyPath   string
}

type configView struct {
	ShortUID  string
	Resolver  string
	CacheZone string
	CacheDir  string
	Servers   []serverBlock
}

var configTemplate = template.Must(template.New("router").Parse(`# kuplat project {{ .ShortUID }}
{{- if .CacheZone }}
proxy_cache_path {{ .CacheDir }} levels=1:2 keys_zone={{ .CacheZone }}:10m max_size=256m inactive=60m;
{{- end }}
{{ range .Servers }}
server {
{{- if eq .Scheme "https" }}
    listen 443 ssl;
    http2 on;
    ssl_certificate {{ .CertPath }};
    ssl_certificate_key {{ .KeyPath }};
{{- else }}
    listen 80;
{{- end }}
    server_name {{ .Names }};
{{- if .ParityTo }}
    return 301 {{ .ParityTo }}://$host$request_uri;
{{- else }}
    resolver {{ $.Resolver }} valid=10s ipv6=off;
{{- range .Locations }}
{{- range .Redirects }}

    location {{ .Match }} {
{{- if .Expires }}
        expires {{ .Expires }};
{{- end }}
        return {{ .Code }} {{ .Target }};
    }
{{- end }}

    location {{ .Path }} {
{{- if .RedirectTo }}
        return 301 {{ .RedirectTo }};
{{- else }}
        set $kuplat_upstream http://{{ .Upstream }};
        proxy_pass $kuplat_upstream;
        proxy_http_version 1.1;
        proxy_set_header Host $host;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection $http_connection;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-Host $host;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Port $server_port;
{{- if .Cache }}
        proxy_cache {{ $.CacheZone }};
        proxy_cache_valid 200 301 302 1m;
{{- end }}
{{- if .SSI }}
        ssi on;
{{- end }}
{{- end }}
    }
{{- end }}
{{- end }}
}
{{ end -}}
`))

type hostRoutes map[string][]parser.Route

// Compile renders the router configuration of one project. Upstream routes
// whose application is not in Upstreams are left out and reported instead
// of failing the whole project.
func Compile(in CompileInput) ([]byte, []Omission, error) {
	var omissions []Omission
	routes := parser.Expand(in.Routes, in.ShortUID, in.Domains)

	// hostname -> scheme -> routes
	byHost := map[string]hostRoutes{}
	seen := map[string]string{}
	useCache := false
	for _, r := range routes {
		if r.Type == parser.RouteUpstream {
			if _, ok := in.Upstreams[r.UpstreamApp]; !ok {
				omissions = append(omissions, Omission{
					Route:  r.OriginalURL,
					Reason: fmt.Sprintf("upstream application %q is not available", r.UpstreamApp),
				})
				continue
			}
		}
		for _, host := range r.Hostnames {
			key := r.Scheme + "://" + host + r.Path
			if prev, dup := seen[key]; dup {
				omissions = append(omissions, Omission{
					Route:    r.OriginalURL,
					Hostname: host,
					Reason:   fmt.Sprintf("duplicates %s", prev),
				})
				continue
			}
			seen[key] = r.OriginalURL
			if byHost[host] == nil {
				byHost[host] = hostRoutes{}
			}
			byHost[host][r.Scheme] = append(byHost[host][r.Scheme], r)
			if r.Cache.Enabled {
				useCache = true
			}
		}
	}

	view := configView{
		ShortUID: in.ShortUID,
		Resolver: dockerResolver,
	}
	if useCache {
		view.CacheZone = "kuplat_" + in.ShortUID
		view.CacheDir = "/var/cache/nginx/kuplat_" + in.ShortUID
	}

	hosts := make([]string, 0, len(byHost))
	for host := range byHost {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		for _, scheme := range []string{schemeHTTP, schemeHTTPS} {
			server := serverBlock{
				Scheme:   scheme,
				Names:    serverNames(host),
				CertPath: consts.RouterCertDir + "/" + certFile,
				KeyPath:  consts.RouterCertDir + "/" + keyFile,
			}
			schemeRoutes := byHost[host][scheme]
			if len(schemeRoutes) == 0 {
				server.ParityTo = otherScheme(scheme)
				view.Servers = append(view.Servers, server)
				continue
			}
			sort.SliceStable(schemeRoutes, func(i, j int) bool {
				return schemeRoutes[i].Path < schemeRoutes[j].Path
			})
			for _, r := range schemeRoutes {
				server.Locations = append(server.Locations, location(r, in))
			}
			view.Servers = append(view.Servers, server)
		}
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, view); err != nil {
		return nil, omissions, fmt.Errorf("%w: render %s: %w", errdefs.ErrRouterConfig, in.ShortUID, err)
	}
	return buf.Bytes(), omissions, nil
}

func location(r parser.Route, in CompileInput) locationBlock {
	loc := locationBlock{
		Path:  r.Path,
		Cache: r.Cache.Enabled,
		SSI:   r.SSI.Enabled,
	}
	if r.Type == parser.RouteRedirect {
		loc.RedirectTo = parser.ResolveDefault(r.To, in.ShortUID)
		return loc
	}
	loc.Upstream = in.Upstreams[r.UpstreamApp]

	froms := make([]string, 0, len(r.Redirects.Paths))
	for from := range r.Redirects.Paths {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		pr := r.Redirects.Paths[from]
		to := parser.ResolveDefault(pr.To, in.ShortUID)
		rule := redirectRule{Code: pr.StatusCode(), Expires: r.Redirects.Expires}
		switch {
		case pr.Regexp:
			rule.Match = fmt.Sprintf("~ %q", from)
			rule.Target = to
		case pr.IsPrefix():
			pattern, target := prefixRedirect(from, to)
			rule.Match = fmt.Sprintf("~ %q", pattern)
			rule.Target = target + "$is_args$args"
		default:
			rule.Match = "= " + from
			rule.Target = to + "$is_args$args"
		}
		loc.Redirects = append(loc.Redirects, rule)
	}
	return loc
}

// prefixRedirect matches from and everything below it on a path boundary,
// so "/old" covers "/old/x" but not "/older". The remainder is appended to to.
func prefixRedirect(from, to string) (string, string) {
	base := regexp.QuoteMeta(strings.TrimSuffix(from, "/"))
	dest := strings.TrimSuffix(to, "/")
	if dest == "" {
		return "^" + base + "(?:/(.*))?$", "/$1"
	}
	return "^" + base + "(/.*)?$", dest + "$1"
}

// serverNames adds a suffix wildcard for dotless hostnames so "abc123"
// also answers for "abc123.localhost" and friends.
func serverNames(host string) string {
	if strings.Contains(host, ".") {
		return host
	}
	return host + " " + host + ".*"
}

func otherScheme(scheme string) string {
	if scheme == schemeHTTP {
		return schemeHTTPS
	}
	return schemeHTTP
}
