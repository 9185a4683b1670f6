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

package config

import (
	"os"

	"github.com/spf13/viper"
)

type Var struct {
	Key        string // e.g. "KUPLAT_DOCKER_HOST"
	ViperKey   string // optional, e.g. "kuplat/dockerHost"
	CobraKey   string // optional, e.g. "docker-host"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

func (v *Var) EnvKey() string               { return v.Key }
func (v *Var) EnvVar() string               { return v.Key }
func (v *Var) DefaultValue() (string, bool) { return v.Default, v.HasDefault }

// ValueOrDefault defines precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v *Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// BindEnv is safe if ViperKey is empty: does nothing.
func (v *Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v *Var) Set(value string) error {
	return os.Setenv(v.Key, value)
}

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// ---- Declare statically (Viper key optional per var) ----.
var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_VERBOSE = DefineKV("KUPLAT_VERBOSE", "kuplat/verbose")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_CONFIG_FILE = DefineKV("KUPLAT_CONFIG_FILE", "kuplat/configFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_LOG_LEVEL = DefineKV("KUPLAT_LOG_LEVEL", "kuplat/logLevel", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_PROJECT = DefineKV("KUPLAT_PROJECT", "kuplat/project")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_DOMAINS = DefineKV("KUPLAT_DOMAINS", "kuplat/domains")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_DOCKER_HOST = DefineKV("KUPLAT_DOCKER_HOST", "kuplat/dockerHost")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_PLATFORM = DefineKV("KUPLAT_PLATFORM", "kuplat/platform")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_LOCK_DIR = DefineKV("KUPLAT_LOCK_DIR", "kuplat/lockDir")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_METRICS_TEXTFILE = DefineKV("KUPLAT_METRICS_TEXTFILE", "kuplat/metricsTextfile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_READINESS_TIMEOUT = DefineKV("KUPLAT_READINESS_TIMEOUT", "kuplat/readinessTimeout", "2m")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROOT_READINESS_INTERVAL = DefineKV("KUPLAT_READINESS_INTERVAL", "kuplat/readinessInterval", "1s")

	// Router variables
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_IMAGE = DefineKV("KUPLAT_ROUTER_IMAGE", "kuplat/routerImage", "docker.io/library/nginx:1.27-alpine")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_HTTP_PORT = DefineKV("KUPLAT_ROUTER_HTTP_PORT", "kuplat/routerHttpPort", "80")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_HTTPS_PORT = DefineKV("KUPLAT_ROUTER_HTTPS_PORT", "kuplat/routerHttpsPort", "443")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_START_OUTPUT = DefineKV("KUPLAT_ROUTER_START_OUTPUT", "kuplat/router/start/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_STATUS_OUTPUT = DefineKV("KUPLAT_ROUTER_STATUS_OUTPUT", "kuplat/router/status/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_PURGE_OUTPUT = DefineKV("KUPLAT_ROUTER_PURGE_OUTPUT", "kuplat/router/purge/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTER_PURGE_DRY_RUN = DefineKV("KUPLAT_ROUTER_PURGE_DRY_RUN", "kuplat/router/purge/dryRun")

	// Build variables
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_BUILD_SSH_KEY = DefineKV("KUPLAT_BUILD_SSH_KEY", "kuplat/build/sshKey")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_BUILD_KNOWN_HOSTS = DefineKV("KUPLAT_BUILD_KNOWN_HOSTS", "kuplat/build/knownHosts")

	// Command variables
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_INIT_CONFIG = DefineKV("KUPLAT_INIT_CONFIG", "kuplat/init/config")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_START_OUTPUT = DefineKV("KUPLAT_START_OUTPUT", "kuplat/start/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_RESTART_OUTPUT = DefineKV("KUPLAT_RESTART_OUTPUT", "kuplat/restart/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_STATUS_OUTPUT = DefineKV("KUPLAT_STATUS_OUTPUT", "kuplat/status/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_LIST_OUTPUT = DefineKV("KUPLAT_LIST_OUTPUT", "kuplat/list/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_BUILD_OUTPUT = DefineKV("KUPLAT_BUILD_OUTPUT", "kuplat/build/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_PURGE_DRY_RUN = DefineKV("KUPLAT_PURGE_DRY_RUN", "kuplat/purge/dryRun")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_PURGE_OUTPUT = DefineKV("KUPLAT_PURGE_OUTPUT", "kuplat/purge/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_SHELL_USER = DefineKV("KUPLAT_SHELL_USER", "kuplat/shell/user")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_VAR_OUTPUT = DefineKV("KUPLAT_VAR_OUTPUT", "kuplat/var/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_RELATIONSHIPS_OUTPUT = DefineKV("KUPLAT_RELATIONSHIPS_OUTPUT", "kuplat/relationships/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUPLAT_ROUTES_INSTALLED = DefineKV("KUPLAT_ROUTES_INSTALLED", "kuplat/routes/installed")
)

// EnvVars lists every variable bound to a viper key.
func EnvVars() []Var {
	return []Var{
		KUPLAT_ROOT_VERBOSE,
		KUPLAT_ROOT_CONFIG_FILE,
		KUPLAT_ROOT_LOG_LEVEL,
		KUPLAT_ROOT_PROJECT,
		KUPLAT_ROOT_DOMAINS,
		KUPLAT_ROOT_DOCKER_HOST,
		KUPLAT_ROOT_PLATFORM,
		KUPLAT_ROOT_LOCK_DIR,
		KUPLAT_ROOT_METRICS_TEXTFILE,
		KUPLAT_ROOT_READINESS_TIMEOUT,
		KUPLAT_ROOT_READINESS_INTERVAL,
		KUPLAT_ROUTER_IMAGE,
		KUPLAT_ROUTER_HTTP_PORT,
		KUPLAT_ROUTER_HTTPS_PORT,
		KUPLAT_ROUTER_START_OUTPUT,
		KUPLAT_ROUTER_STATUS_OUTPUT,
		KUPLAT_ROUTER_PURGE_OUTPUT,
		KUPLAT_ROUTER_PURGE_DRY_RUN,
		KUPLAT_BUILD_SSH_KEY,
		KUPLAT_BUILD_KNOWN_HOSTS,
		KUPLAT_INIT_CONFIG,
		KUPLAT_START_OUTPUT,
		KUPLAT_RESTART_OUTPUT,
		KUPLAT_STATUS_OUTPUT,
		KUPLAT_LIST_OUTPUT,
		KUPLAT_BUILD_OUTPUT,
		KUPLAT_PURGE_DRY_RUN,
		KUPLAT_PURGE_OUTPUT,
		KUPLAT_SHELL_USER,
		KUPLAT_VAR_OUTPUT,
		KUPLAT_RELATIONSHIPS_OUTPUT,
		KUPLAT_ROUTES_INSTALLED,
	}
}
