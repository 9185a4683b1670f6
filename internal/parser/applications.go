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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"gopkg.in/yaml.v3"
)

// ApplicationConfig is the parsed form of one application definition.
type ApplicationConfig struct {
	Name string `yaml:"name"     json:"name"`
	// RawType is the declared "type" ("php:8.2").
	RawType string `yaml:"type"     json:"type"`
	Type    string `yaml:"-"        json:"-"`
	Version string `yaml:"-"        json:"-"`
	Disk    int    `yaml:"disk"     json:"disk,omitempty"`
	// Root is the application directory relative to the project path.
	Root          string                       `yaml:"-"              json:"-"`
	Source        SourceConfig                 `yaml:"source"         json:"source,omitempty"`
	Relationships map[string]string            `yaml:"relationships"  json:"relationships,omitempty"`
	Mounts        map[string]MountConfig       `yaml:"mounts"         json:"mounts,omitempty"`
	Hooks         HooksConfig                  `yaml:"hooks"          json:"hooks,omitempty"`
	Variables     map[string]map[string]any    `yaml:"variables"      json:"variables,omitempty"`
	Web           WebConfig                    `yaml:"web"            json:"web"`
	Runtime       RuntimeConfig                `yaml:"runtime"        json:"runtime,omitempty"`
	Dependencies  map[string]map[string]string `yaml:"dependencies"   json:"dependencies,omitempty"`
	Build         BuildConfig                  `yaml:"build"          json:"build,omitempty"`
}

// SourceConfig points at the application directory inside the project.
type SourceConfig struct {
	Root string `yaml:"root" json:"root,omitempty"`
}

// MountConfig declares a writable mount inside the application.
type MountConfig struct {
	Source     string `yaml:"source"      json:"source"`
	SourcePath string `yaml:"source_path" json:"source_path"`
}

// UnmarshalYAML accepts both the map form and the legacy "shared:files/x" string.
func (m *MountConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		src, path, ok := strings.Cut(node.Value, ":")
		if !ok {
			return fmt.Errorf("invalid mount %q", node.Value)
		}
		m.Source = "local"
		if src != "shared" && src != "local" {
			m.Source = src
		}
		m.SourcePath = strings.TrimPrefix(strings.TrimPrefix(path, "files/"), "/")
		return nil
	}
	type plain MountConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*m = MountConfig(p)
	return nil
}

// HooksConfig holds the build and deploy shell scripts.
type HooksConfig struct {
	Build  string `yaml:"build"  json:"build,omitempty"`
	Deploy string `yaml:"deploy" json:"deploy,omitempty"`
}

// BuildConfig selects the build flavor.
type BuildConfig struct {
	Flavor string `yaml:"flavor" json:"flavor,omitempty"`
}

// RuntimeConfig lists runtime extensions to install.
type RuntimeConfig struct {
	Extensions []string `yaml:"extensions" json:"extensions,omitempty"`
}

// WebConfig describes how the application is served.
type WebConfig struct {
	Locations map[string]LocationConfig `yaml:"locations" json:"locations"`
	Commands  WebCommands               `yaml:"commands"  json:"commands,omitempty"`
	Upstream  UpstreamConfig            `yaml:"upstream"  json:"upstream"`
}

// WebCommands holds the long-running start command.
type WebCommands struct {
	Start string `yaml:"start" json:"start,omitempty"`
}

// UpstreamConfig selects how nginx reaches the application process.
type UpstreamConfig struct {
	SocketFamily string `yaml:"socket_family" json:"socket_family"`
	Protocol     string `yaml:"protocol"      json:"protocol"`
}

// LocationConfig is one web.locations entry.
type LocationConfig struct {
	Root     string                `yaml:"root"     json:"root"`
	Passthru Passthru              `yaml:"passthru" json:"passthru"`
	Index    []string              `yaml:"index"    json:"index,omitempty"`
	Expires  string                `yaml:"expires"  json:"expires,omitempty"`
	Allow    *bool                 `yaml:"allow"    json:"allow,omitempty"`
	Scripts  *bool                 `yaml:"scripts"  json:"scripts,omitempty"`
	Rules    map[string]RuleConfig `yaml:"rules"    json:"rules,omitempty"`
}

// RuleConfig overrides a location for request paths matching a regex.
type RuleConfig struct {
	Passthru Passthru `yaml:"passthru" json:"passthru"`
	Allow    *bool    `yaml:"allow"    json:"allow,omitempty"`
	Expires  string   `yaml:"expires"  json:"expires,omitempty"`
}

// Passthru is either a boolean or a front-controller path.
type Passthru struct {
	Enabled bool
	Target  string
}

// UnmarshalYAML accepts "true", "false" or a path string.
func (p *Passthru) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		*p = Passthru{Enabled: b}
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("passthru must be a boolean or a path: %w", err)
	}
	*p = Passthru{Enabled: s != "", Target: s}
	return nil
}

// MarshalYAML renders the original scalar form.
func (p Passthru) MarshalYAML() (any, error) {
	if p.Target != "" {
		return p.Target, nil
	}
	return p.Enabled, nil
}

// MarshalJSON renders the original scalar form.
func (p Passthru) MarshalJSON() ([]byte, error) {
	if p.Target != "" {
		return []byte(fmt.Sprintf("%q", p.Target)), nil
	}
	return []byte(fmt.Sprintf("%t", p.Enabled)), nil
}

// Allowed reports whether serving static files is allowed, defaulting to true.
func (l LocationConfig) Allowed() bool {
	return l.Allow == nil || *l.Allow
}

// ParseApplications reads .platform/applications.yaml when present, otherwise
// every .platform.app.yaml at the project root and one level below it.
func ParseApplications(root string) ([]ApplicationConfig, error) {
	listFile := filepath.Join(root, consts.PlatformDir, consts.ApplicationsFile)
	var list []ApplicationConfig
	found, err := readYAML(listFile, &list)
	if err != nil {
		return nil, err
	}
	if found {
		for i := range list {
			list[i].Root = list[i].Source.Root
			if err = normalizeApplication(listFile, &list[i]); err != nil {
				return nil, err
			}
		}
		return sortedApps(listFile, list)
	}

	files, err := appConfigFiles(root)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		var app ApplicationConfig
		if _, err = readYAML(file, &app); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(root, filepath.Dir(file))
		if rel == "." {
			rel = ""
		}
		app.Root = rel
		if err = normalizeApplication(file, &app); err != nil {
			return nil, err
		}
		list = append(list, app)
	}
	return sortedApps(consts.AppConfigFile, list)
}

func appConfigFiles(root string) ([]string, error) {
	var files []string
	if _, err := os.Stat(filepath.Join(root, consts.AppConfigFile)); err == nil {
		files = append(files, filepath.Join(root, consts.AppConfigFile))
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read project dir %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		candidate := filepath.Join(root, e.Name(), consts.AppConfigFile)
		if _, statErr := os.Stat(candidate); statErr == nil {
			files = append(files, candidate)
		}
	}
	return files, nil
}

func sortedApps(file string, apps []ApplicationConfig) ([]ApplicationConfig, error) {
	seen := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		if _, dup := seen[a.Name]; dup {
			return nil, configErr(file, a.Name, "duplicate application name")
		}
		seen[a.Name] = struct{}{}
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

func normalizeApplication(file string, app *ApplicationConfig) error {
	app.Name = strings.TrimSpace(app.Name)
	if app.Name == "" {
		return configErr(file, "", "application name is required")
	}
	app.Type, app.Version = splitTypeVersion(app.RawType)
	if app.Type == "" {
		return configErr(file, app.Name, "application type is required")
	}
	if app.Relationships == nil {
		app.Relationships = map[string]string{}
	}
	for rel, target := range app.Relationships {
		svc, _, _ := strings.Cut(target, ":")
		if svc == "" {
			return configErr(file, app.Name, "relationship %q has no service", rel)
		}
	}
	if app.Mounts == nil {
		app.Mounts = map[string]MountConfig{}
	}
	if app.Variables == nil {
		app.Variables = map[string]map[string]any{}
	}
	if len(app.Web.Locations) == 0 {
		app.Web.Locations = map[string]LocationConfig{
			"/": {Passthru: Passthru{Enabled: true}},
		}
	}
	if app.Web.Upstream.SocketFamily == "" {
		app.Web.Upstream.SocketFamily = "tcp"
	}
	if app.Web.Upstream.Protocol == "" {
		app.Web.Upstream.Protocol = "http"
	}
	if app.Type == "php" && app.Web.Upstream.Protocol == "http" && app.Web.Commands.Start == "" {
		app.Web.Upstream.Protocol = "fastcgi"
	}
	return nil
}

// RelationshipTarget splits "service:endpoint" into its parts.
func RelationshipTarget(target string) (string, string) {
	svc, endpoint, _ := strings.Cut(target, ":")
	return svc, endpoint
}

// ValidateRelationships checks that application relationships name declared
// services and service relationships name declared applications.
func ValidateRelationships(apps []ApplicationConfig, services []ServiceConfig) error {
	known := make(map[string]struct{}, len(services))
	for _, s := range services {
		known[s.Name] = struct{}{}
	}
	for _, app := range apps {
		rels := make([]string, 0, len(app.Relationships))
		for rel := range app.Relationships {
			rels = append(rels, rel)
		}
		sort.Strings(rels)
		for _, rel := range rels {
			svc, _ := RelationshipTarget(app.Relationships[rel])
			if _, ok := known[svc]; !ok {
				return configErr(consts.ServicesFile, app.Name,
					"relationship %q references undefined service %q", rel, svc)
			}
		}
	}

	appNames := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		appNames[a.Name] = struct{}{}
	}
	for _, s := range services {
		for rel, target := range s.Relationships {
			app, _ := RelationshipTarget(target)
			if _, ok := appNames[app]; !ok {
				return configErr(consts.ServicesFile, s.Name,
					"relationship %q references undefined application %q", rel, app)
			}
		}
	}
	return nil
}
