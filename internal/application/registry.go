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
	"fmt"
	"sort"
	"strings"
)

// Descriptor is a registered application runtime.
type Descriptor struct {
	Type           string
	Images         map[string]string
	DefaultVersion string
	// Packages are apk packages installed on top of the common build set.
	Packages []string
	// ToleratesHookFailure keeps building when the build hook fails.
	ToleratesHookFailure bool
	// DefaultStart runs when web.commands.start is empty.
	DefaultStart string

	extensions   func(exts []string) string
	dependencies map[string]func(pkgs map[string]string) string
}

// Versions lists the supported versions in ascending order.
func (d Descriptor) Versions() []string {
	out := make([]string, 0, len(d.Images))
	for v := range d.Images {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ExtensionsCommand returns the command installing exts, or "" when the
// runtime has no extension mechanism or exts is empty.
func (d Descriptor) ExtensionsCommand(exts []string) string {
	if d.extensions == nil || len(exts) == 0 {
		return ""
	}
	return d.extensions(exts)
}

// DependenciesCommand returns the command installing the packages declared
// for manager, or "" when the manager is not supported.
func (d Descriptor) DependenciesCommand(manager string, pkgs map[string]string) string {
	fn, ok := d.dependencies[manager]
	if !ok || len(pkgs) == 0 {
		return ""
	}
	return fn(pkgs)
}

var registry = map[string]Descriptor{}

func register(d Descriptor) {
	if _, dup := registry[d.Type]; dup {
		panic(fmt.Sprintf("application type %q registered twice", d.Type))
	}
	registry[d.Type] = d
}

// Lookup returns the descriptor registered for typ.
func Lookup(typ string) (Descriptor, bool) {
	d, ok := registry[typ]
	return d, ok
}

// Types lists every registered runtime.
func Types() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func images(format string, versions ...string) map[string]string {
	out := make(map[string]string, len(versions))
	for _, v := range versions {
		out[v] = fmt.Sprintf(format, v)
	}
	return out
}

// packageList renders pkgs as "name<sep>version" pairs in name order; "*"
// means any version.
func packageList(pkgs map[string]string, sep string) string {
	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		version := strings.TrimSpace(pkgs[name])
		if version == "" || version == "*" {
			parts = append(parts, shellQuote(name))
			continue
		}
		parts = append(parts, shellQuote(name+sep+version))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func init() {
	npm := func(pkgs map[string]string) string {
		return "npm install -g " + packageList(pkgs, "@")
	}
	pip := func(pkgs map[string]string) string {
		return "pip install --no-cache-dir " + packageList(pkgs, "==")
	}

	register(Descriptor{
		Type:                 "php",
		Images:               images("docker.io/library/php:%s-fpm-alpine", "8.1", "8.2", "8.3"),
		DefaultVersion:       "8.3",
		Packages:             []string{"composer"},
		ToleratesHookFailure: true,
		DefaultStart:         "php-fpm -F",
		extensions: func(exts []string) string {
			return "apk add --no-cache --virtual .kuplat-ext $PHPIZE_DEPS && " +
				"docker-php-ext-install -j$(nproc) " + strings.Join(exts, " ") +
				" && apk del .kuplat-ext"
		},
		dependencies: map[string]func(map[string]string) string{
			"php": func(pkgs map[string]string) string {
				return "composer global require --no-interaction " + packageList(pkgs, ":")
			},
		},
	})
	register(Descriptor{
		Type:           "nodejs",
		Images:         images("docker.io/library/node:%s-alpine", "18", "20", "22"),
		DefaultVersion: "20",
		dependencies: map[string]func(map[string]string) string{
			"nodejs": npm,
		},
	})
	register(Descriptor{
		Type:           "python",
		Images:         images("docker.io/library/python:%s-alpine", "3.11", "3.12"),
		DefaultVersion: "3.12",
		dependencies: map[string]func(map[string]string) string{
			"python":  pip,
			"python3": pip,
			"nodejs":  npm,
		},
	})
	register(Descriptor{
		Type:           "golang",
		Images:         images("docker.io/library/golang:%s-alpine", "1.22", "1.23"),
		DefaultVersion: "1.23",
	})
	register(Descriptor{
		Type:           "ruby",
		Images:         images("docker.io/library/ruby:%s-alpine", "3.2", "3.3"),
		DefaultVersion: "3.3",
		Packages:       []string{"build-base"},
		dependencies: map[string]func(map[string]string) string{
			"ruby": func(pkgs map[string]string) string {
				names := make([]string, 0, len(pkgs))
				for name := range pkgs {
					names = append(names, name)
				}
				sort.Strings(names)
				cmds := make([]string, 0, len(names))
				for _, name := range names {
					cmd := "gem install " + shellQuote(name)
					if v := strings.TrimSpace(pkgs[name]); v != "" && v != "*" {
						cmd += " -v " + shellQuote(v)
					}
					cmds = append(cmds, cmd)
				}
				return strings.Join(cmds, " && ")
			},
			"nodejs": npm,
		},
	})
}
