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

// Package parser turns a project's on-disk YAML into immutable configuration
// snapshots. Nothing in this package touches the container engine.
package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/errdefs"
	"gopkg.in/yaml.v3"
)

// ConfigError reports a problem with one entry of a configuration file.
type ConfigError struct {
	File string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (%q): %v", e.File, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(file, name, format string, args ...any) error {
	return &ConfigError{
		File: file,
		Name: name,
		Err:  fmt.Errorf("%w: %s", errdefs.ErrParser, fmt.Sprintf(format, args...)),
	}
}

// Config is every parsed configuration of one project.
type Config struct {
	Applications []ApplicationConfig
	Services     []ServiceConfig
	Routes       []Route
}

// HasProjectConfig reports whether root contains a recognisable project.
func HasProjectConfig(root string) bool {
	for _, p := range []string{
		filepath.Join(root, consts.AppConfigFile),
		filepath.Join(root, consts.PlatformDir, consts.ApplicationsFile),
	} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Load parses applications, services and routes under root and validates the
// references between them.
func Load(root string) (*Config, error) {
	apps, err := ParseApplications(root)
	if err != nil {
		return nil, err
	}
	services, err := ParseServices(root)
	if err != nil {
		return nil, err
	}
	defaultUpstream := ""
	if len(apps) > 0 {
		defaultUpstream = apps[0].Name
	}
	routes, err := ParseRoutes(root, defaultUpstream)
	if err != nil {
		return nil, err
	}
	if err = ValidateRelationships(apps, services); err != nil {
		return nil, err
	}
	return &Config{Applications: apps, Services: services, Routes: routes}, nil
}

// readYAML decodes file into out. A missing file leaves out untouched and
// reports false.
func readYAML(file string, out any) (bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %w", errdefs.ErrParser, file, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return true, nil
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		return true, &ConfigError{File: file, Err: fmt.Errorf("%w: %w", errdefs.ErrParser, err)}
	}
	return true, nil
}

// splitTypeVersion splits "mysql:10.4" into its type and version.
func splitTypeVersion(s string) (string, string) {
	typ, version, _ := strings.Cut(strings.TrimSpace(s), ":")
	return typ, version
}
