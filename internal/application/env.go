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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/naming"
)

// envVariablePrefix marks project variables exported as environment variables.
const envVariablePrefix = "env:"

// environment builds the container environment in key order.
func (a *Application) environment(deps Deps) ([]string, error) {
	env := map[string]string{
		"PLATFORM_APPLICATION_NAME": a.cfg.Name,
		"PLATFORM_PROJECT":          naming.ShortUID(deps.Project.UID),
		"PLATFORM_PROJECT_ENTROPY":  deps.Entropy,
		"PLATFORM_BRANCH":           consts.DefaultBranch,
		"PLATFORM_ENVIRONMENT":      consts.DefaultBranch,
		"PLATFORM_DIR":              consts.AppDir,
		"PLATFORM_APP_DIR":          consts.AppDir,
		"PLATFORM_DOCUMENT_ROOT":    a.DocumentRoot(),
		"PORT":                      fmt.Sprint(consts.AppUpstreamPort),
	}

	encoded := map[string]any{
		"PLATFORM_RELATIONSHIPS": a.relData,
		"PLATFORM_ROUTES":        nonNil(deps.Routes),
		"PLATFORM_VARIABLES":     a.platformVariables(deps.Variables),
		"PLATFORM_APPLICATION":   a.cfg,
	}
	for key, value := range encoded {
		v, err := encodeEnvJSON(value)
		if err != nil {
			return nil, fmt.Errorf("application %s: encode %s: %w", a.cfg.Name, key, err)
		}
		env[key] = v
	}

	for key, value := range a.cfg.Variables["env"] {
		env[key] = scalarString(value)
	}
	for key, value := range deps.Variables {
		if name, ok := strings.CutPrefix(key, envVariablePrefix); ok && name != "" {
			env[name] = value
		}
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out, nil
}

// platformVariables merges the non-env application variables ("php:memory_limit")
// with the project variables that are not exported to the environment.
func (a *Application) platformVariables(project map[string]string) map[string]string {
	out := map[string]string{}
	for group, values := range a.cfg.Variables {
		if group == "env" {
			continue
		}
		for key, value := range values {
			out[group+":"+key] = scalarString(value)
		}
	}
	for key, value := range project {
		if !strings.HasPrefix(key, envVariablePrefix) {
			out[key] = value
		}
	}
	return out
}

// DocumentRoot is the web root of the "/" location.
func (a *Application) DocumentRoot() string {
	loc, ok := a.cfg.Web.Locations["/"]
	if !ok || loc.Root == "" {
		return consts.AppDir
	}
	return path.Join(consts.AppDir, loc.Root)
}

func encodeEnvJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeEnvJSON reverses the PLATFORM_* encoding.
func DecodeEnvJSON(value string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
