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

package application

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/parser"
)

const phpFPMPoolPath = "/usr/local/etc/php-fpm.d/zz-kuplat.conf"

type ruleView struct {
	Pattern  string
	Allow    bool
	Passthru string
	Expires  string
}

type locationView struct {
	Path     string
	Root     string
	Index    string
	Expires  string
	Allow    bool
	Scripts  bool
	Passthru string
	Rules    []ruleView
}

type fragmentView struct {
	Port      int
	Upstream  string
	FastCGI   bool
	Locations []locationView
	Backends  []backendView
}

type backendView struct {
	Name   string
	Target string
}

var fragmentTemplate = template.Must(template.New("app").Parse(`server {
    listen {{ .Port }} default_server;
    server_name _;
    client_max_body_size 250m;
    absolute_redirect off;
{{ range .Locations }}
    location {{ .Path }} {
        root "{{ .Root }}";
{{- if .Index }}
        index {{ .Index }};
{{- end }}
{{- if .Expires }}
        expires {{ .Expires }};
{{- end }}
{{- range .Rules }}

        location ~ "{{ .Pattern }}" {
{{- if .Expires }}
            expires {{ .Expires }};
{{- end }}
{{- if .Allow }}
            try_files $uri {{ if .Passthru }}{{ .Passthru }}{{ else }}=404{{ end }};
{{- else if .Passthru }}
            try_files /.kuplat-none {{ .Passthru }};
{{- else }}
            return 404;
{{- end }}
        }
{{- end }}
{{- if and .Scripts $.FastCGI }}

        location ~ [^/]\.php(/|$) {
            fastcgi_split_path_info ^(.+?\.php)(/.*)$;
            try_files $fastcgi_script_name =404;
            include fastcgi_params;
            fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
            fastcgi_pass {{ $.Upstream }};
        }
{{- end }}
{{- if .Allow }}
        try_files $uri $uri/ {{ if .Passthru }}{{ .Passthru }}{{ else }}=404{{ end }};
{{- else if .Passthru }}
        try_files /.kuplat-none {{ .Passthru }};
{{- else }}
        return 404;
{{- end }}
    }
{{ end }}
{{- range .Backends }}
    location {{ .Name }} {
{{- if $.FastCGI }}
        include fastcgi_params;
        fastcgi_param SCRIPT_FILENAME $document_root{{ .Target }};
        fastcgi_param SCRIPT_NAME {{ .Target }};
        fastcgi_pass {{ $.Upstream }};
{{- else }}
        proxy_set_header Host $http_host;
        proxy_set_header X-Forwarded-For $http_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $http_x_forwarded_proto;
        proxy_pass http://{{ $.Upstream }};
{{- end }}
    }
{{ end -}}
}
`))

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ProxyFragment renders the nginx server block that serves the application
// inside its own container from web.locations.
func (a *Application) ProxyFragment() ([]byte, error) {
	view := fragmentView{
		Port:     consts.AppHTTPPort,
		Upstream: fmt.Sprintf("127.0.0.1:%d", consts.AppUpstreamPort),
		FastCGI:  a.cfg.Web.Upstream.Protocol == "fastcgi",
	}

	paths := make([]string, 0, len(a.cfg.Web.Locations))
	for p := range a.cfg.Web.Locations {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	backends := map[string]string{}
	backendName := func(target string) string {
		if target == "" {
			target = "/"
		}
		slug := strings.Trim(nonWord.ReplaceAllString(target, "_"), "_")
		if slug == "" {
			slug = "root"
		}
		name := "@app_" + slug
		backends[name] = target
		return name
	}

	for _, p := range paths {
		loc := a.cfg.Web.Locations[p]
		lv := locationView{
			Path:    p,
			Root:    a.locationRoot(loc),
			Index:   strings.Join(loc.Index, " "),
			Expires: loc.Expires,
			Allow:   loc.Allowed(),
			Scripts: loc.Scripts == nil || *loc.Scripts,
		}
		if loc.Passthru.Enabled {
			lv.Passthru = backendName(passthruTarget(loc.Passthru))
		}

		patterns := make([]string, 0, len(loc.Rules))
		for pattern := range loc.Rules {
			patterns = append(patterns, pattern)
		}
		sort.Strings(patterns)
		for _, pattern := range patterns {
			rule := loc.Rules[pattern]
			rv := ruleView{
				Pattern: pattern,
				Allow:   rule.Allow == nil || *rule.Allow,
				Expires: rule.Expires,
			}
			if rule.Passthru.Enabled {
				rv.Passthru = backendName(passthruTarget(rule.Passthru))
			}
			lv.Rules = append(lv.Rules, rv)
		}
		view.Locations = append(view.Locations, lv)
	}

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		view.Backends = append(view.Backends, backendView{Name: name, Target: backends[name]})
	}

	var buf bytes.Buffer
	if err := fragmentTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render web config for %s: %w", a.Name(), err)
	}
	return buf.Bytes(), nil
}

func (a *Application) locationRoot(loc parser.LocationConfig) string {
	if loc.Root == "" {
		return consts.AppDir
	}
	return path.Join(consts.AppDir, loc.Root)
}

func passthruTarget(p parser.Passthru) string {
	if p.Target != "" {
		return p.Target
	}
	return "/"
}

// writeRuntimeConfig installs the nginx fragment and, for fastcgi upstreams,
// the php-fpm pool listening on the upstream port.
func (a *Application) writeRuntimeConfig(ctx context.Context) error {
	fragment, err := a.ProxyFragment()
	if err != nil {
		return err
	}
	if _, err = a.RunCommand(ctx, "mkdir -p "+path.Dir(consts.AppNginxConfigPath), "root"); err != nil {
		return err
	}
	if err = a.UploadFile(ctx, fragment, consts.AppNginxConfigPath, 0o644); err != nil {
		return err
	}
	if a.cfg.Web.Upstream.Protocol != "fastcgi" {
		return nil
	}
	pool := fmt.Sprintf("[www]\nuser = %[1]s\ngroup = %[1]s\nlisten = 127.0.0.1:%[2]d\nclear_env = no\n",
		consts.AppWebUser, consts.AppUpstreamPort)
	return a.UploadFile(ctx, []byte(pool), phpFPMPoolPath, 0o644)
}

// configureWeb refreshes the nginx fragment of a running, built container.
func (a *Application) configureWeb(ctx context.Context) error {
	fragment, err := a.ProxyFragment()
	if err != nil {
		return err
	}
	if err = a.UploadFile(ctx, fragment, consts.AppNginxConfigPath, 0o644); err != nil {
		return err
	}
	_, err = a.RunCommand(ctx, "nginx -t -q && (nginx -s reload 2>/dev/null || nginx)", "root")
	return err
}
