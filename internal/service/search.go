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
	"context"
	"fmt"
	"sort"

	"github.com/eminwux/kuplat/internal/ctr"
)

const (
	solrPort            = 8983
	solrDefaultCore     = "collection1"
	solrDefaultEndpoint = "solr"
	elasticsearchPort   = 9200
)

type solrHandler struct{}

func (solrHandler) command(*Service) []string { return nil }

func (solrHandler) env(*Service) []string {
	return []string{"SOLR_HEAP=512m"}
}

func (solrHandler) volumes(*Service) map[string]string {
	return map[string]string{"data": "/var/solr"}
}

func (solrHandler) endpoints(s *Service) []string {
	return s.endpointNames(solrDefaultEndpoint)
}

func (solrHandler) serviceData(s *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = solrDefaultEndpoint
	}
	core := solrDefaultCore
	if ep, ok := s.cfg.Configuration.Endpoints[endpoint]; ok {
		if ep.Core != "" {
			core = ep.Core
		}
	} else if len(s.cfg.Configuration.Endpoints) > 0 || endpoint != solrDefaultEndpoint {
		return Relationship{}, s.unknownEndpoint(endpoint)
	}
	return Relationship{
		Rel:    endpoint,
		Scheme: "solr",
		Port:   solrPort,
		Path:   "solr/" + core,
		Query:  map[string]any{},
	}, nil
}

func (solrHandler) readinessProbe(*Service) []string {
	return []string{"sh", "-c", "curl -sf http://127.0.0.1:8983/solr/admin/info/system >/dev/null"}
}

func (solrHandler) provision(ctx context.Context, s *Service) error {
	for _, core := range solrCores(s) {
		script := fmt.Sprintf("test -d /var/solr/data/%[1]s || solr create_core -c %[1]s", core)
		if _, err := s.Exec(ctx, ctr.ExecSpec{Cmd: []string{"sh", "-c", script}, User: "solr"}); err != nil {
			return fmt.Errorf("provision %s: %w", s.Name(), err)
		}
	}
	return nil
}

func solrCores(s *Service) []string {
	cores := map[string]struct{}{}
	for name := range s.cfg.Configuration.Cores {
		cores[name] = struct{}{}
	}
	for _, ep := range s.cfg.Configuration.Endpoints {
		if ep.Core != "" {
			cores[ep.Core] = struct{}{}
		}
	}
	if len(cores) == 0 {
		cores[solrDefaultCore] = struct{}{}
	}
	out := make([]string, 0, len(cores))
	for name := range cores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type elasticsearchHandler struct{}

func (elasticsearchHandler) command(*Service) []string { return nil }

func (elasticsearchHandler) env(*Service) []string {
	return []string{
		"discovery.type=single-node",
		"xpack.security.enabled=false",
		"ES_JAVA_OPTS=-Xms512m -Xmx512m",
	}
}

func (elasticsearchHandler) volumes(*Service) map[string]string {
	return map[string]string{"data": "/usr/share/elasticsearch/data"}
}

func (elasticsearchHandler) endpoints(*Service) []string { return []string{"elasticsearch"} }

func (elasticsearchHandler) serviceData(_ *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = "elasticsearch"
	}
	return Relationship{Rel: endpoint, Scheme: "http", Port: elasticsearchPort, Query: map[string]any{}}, nil
}

func (elasticsearchHandler) readinessProbe(*Service) []string {
	return []string{"sh", "-c", "curl -sf http://127.0.0.1:9200/_cluster/health >/dev/null"}
}

func (elasticsearchHandler) provision(context.Context, *Service) error { return nil }

