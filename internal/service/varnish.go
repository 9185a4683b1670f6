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

package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/eminwux/kuplat/internal/parser"
)

const (
	varnishPort    = 80
	varnishVCLPath = "/etc/varnish/default.vcl"
)

type varnishHandler struct{}

func (varnishHandler) command(*Service) []string { return nil }

func (varnishHandler) env(*Service) []string {
	return []string{"VARNISH_SIZE=100M", fmt.Sprintf("VARNISH_HTTP_PORT=%d", varnishPort)}
}

func (varnishHandler) volumes(*Service) map[string]string { return nil }

func (varnishHandler) endpoints(*Service) []string { return []string{"http"} }

func (varnishHandler) serviceData(_ *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = "http"
	}
	return Relationship{Rel: endpoint, Scheme: "http", Port: varnishPort, Query: map[string]any{}}, nil
}

func (varnishHandler) readinessProbe(*Service) []string {
	return []string{"varnishadm", "ping"}
}

type varnishBackend struct {
	Name string
	Host string
	Port int
}

var varnishVCL = template.Must(template.New("vcl").Parse(`vcl 4.1;
{{ range .Backends }}
backend {{ .Name }} {
    .host = "{{ .Host }}";
    .port = "{{ .Port }}";
}
{{ end }}
sub vcl_recv {
{{- with index .Backends 0 }}
    set req.backend_hint = {{ .Name }};
{{- end }}
}
`))

// provision points varnish at the applications named in its relationships.
func (varnishHandler) provision(ctx context.Context, s *Service) error {
	backends := varnishBackends(s)
	if len(backends) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := varnishVCL.Execute(&buf, map[string]any{"Backends": backends}); err != nil {
		return fmt.Errorf("render vcl: %w", err)
	}
	if err := s.UploadFile(ctx, buf.Bytes(), varnishVCLPath, 0o644); err != nil {
		return err
	}
	if _, err := s.RunCommand(ctx, "varnishreload", ""); err != nil {
		return fmt.Errorf("provision %s: %w", s.Name(), err)
	}
	return nil
}

func varnishBackends(s *Service) []varnishBackend {
	rels := make([]string, 0, len(s.cfg.Relationships))
	for rel := range s.cfg.Relationships {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	short := naming.ShortUID(s.uid)
	out := make([]varnishBackend, 0, len(rels))
	for _, rel := range rels {
		app, _ := parser.RelationshipTarget(s.cfg.Relationships[rel])
		host, err := naming.BuildContainerName(short, app)
		if err != nil {
			continue
		}
		out = append(out, varnishBackend{Name: rel, Host: host, Port: consts.AppHTTPPort})
	}
	return out
}
