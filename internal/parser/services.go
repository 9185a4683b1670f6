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
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
)

// ServiceConfig is the parsed form of one services.yaml entry.
type ServiceConfig struct {
	Name          string               `yaml:"-"             json:"name"`
	RawType       string               `yaml:"type"          json:"type"`
	Type          string               `yaml:"-"             json:"-"`
	Version       string               `yaml:"-"             json:"-"`
	Disk          int                  `yaml:"disk"          json:"disk,omitempty"`
	Size          string               `yaml:"size"          json:"size,omitempty"`
	Group         string               `yaml:"group"         json:"group,omitempty"`
	// Relationships lets edge services such as varnish reach applications.
	Relationships map[string]string    `yaml:"relationships" json:"relationships,omitempty"`
	Configuration ServiceConfiguration `yaml:"configuration" json:"configuration"`
}

// ServiceConfiguration is the type-specific configuration block.
type ServiceConfiguration struct {
	Schemas   []string                  `yaml:"schemas"   json:"schemas,omitempty"`
	Endpoints map[string]EndpointConfig `yaml:"endpoints" json:"endpoints,omitempty"`
	Cores     map[string]CoreConfig     `yaml:"cores"     json:"cores,omitempty"`
	Vhosts    []string                  `yaml:"vhosts"    json:"vhosts,omitempty"`
}

// EndpointConfig grants one user access to schemas.
type EndpointConfig struct {
	DefaultSchema string            `yaml:"default_schema" json:"default_schema,omitempty"`
	Privileges    map[string]string `yaml:"privileges"     json:"privileges,omitempty"`
	Core          string            `yaml:"core"           json:"core,omitempty"`
}

// CoreConfig describes one search core.
type CoreConfig struct {
	Conf string `yaml:"conf_dir" json:"conf_dir,omitempty"`
}

// DefaultSchema is used when a service declares no schemas.
const DefaultSchema = "main"

// ParseServices reads .platform/services.yaml. A missing file yields no services.
func ParseServices(root string) ([]ServiceConfig, error) {
	file := filepath.Join(root, consts.PlatformDir, consts.ServicesFile)
	raw := map[string]ServiceConfig{}
	if _, err := readYAML(file, &raw); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ServiceConfig, 0, len(names))
	for _, name := range names {
		svc := raw[name]
		svc.Name = strings.TrimSpace(name)
		svc.Type, svc.Version = splitTypeVersion(svc.RawType)
		if svc.Type == "" {
			return nil, configErr(file, svc.Name, "service type is required")
		}
		normalizeServiceConfiguration(&svc)
		out = append(out, svc)
	}
	return out, nil
}

func normalizeServiceConfiguration(svc *ServiceConfig) {
	cfg := &svc.Configuration
	if len(cfg.Schemas) == 0 {
		cfg.Schemas = []string{DefaultSchema}
	}
	for name, ep := range cfg.Endpoints {
		if ep.DefaultSchema == "" {
			ep.DefaultSchema = cfg.Schemas[0]
		}
		if ep.Privileges == nil {
			ep.Privileges = map[string]string{ep.DefaultSchema: "admin"}
		}
		cfg.Endpoints[name] = ep
	}
}

// EndpointNames returns the declared endpoint names in a stable order.
func (s ServiceConfig) EndpointNames() []string {
	names := make([]string, 0, len(s.Configuration.Endpoints))
	for name := range s.Configuration.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
