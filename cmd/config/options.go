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
	"strings"

	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/router"
	"github.com/eminwux/kuplat/internal/service"
	"github.com/spf13/viper"
)

// RegistriesKey is the config file key holding registry credentials.
const RegistriesKey = "registries"

// ControllerOptions resolves the controller settings from flags,
// environment and the config file.
func ControllerOptions() controller.Options {
	readiness := service.DefaultReadinessPolicy()
	if d := viper.GetDuration(KUPLAT_ROOT_READINESS_TIMEOUT.ViperKey); d > 0 {
		readiness.Timeout = d
	}
	if d := viper.GetDuration(KUPLAT_ROOT_READINESS_INTERVAL.ViperKey); d > 0 {
		readiness.InitialInterval = d
		if readiness.MaxInterval < d {
			readiness.MaxInterval = d
		}
	}

	var registries []ctr.RegistryCredentials
	_ = viper.UnmarshalKey(RegistriesKey, &registries)

	return controller.Options{
		DockerHost:  strings.TrimSpace(viper.GetString(KUPLAT_ROOT_DOCKER_HOST.ViperKey)),
		Platform:    strings.TrimSpace(viper.GetString(KUPLAT_ROOT_PLATFORM.ViperKey)),
		Registries:  registries,
		ProjectPath: strings.TrimSpace(viper.GetString(KUPLAT_ROOT_PROJECT.ViperKey)),
		Domains:     SplitList(viper.GetStringSlice(KUPLAT_ROOT_DOMAINS.ViperKey)),
		LockDir:     strings.TrimSpace(viper.GetString(KUPLAT_ROOT_LOCK_DIR.ViperKey)),
		Router: router.Options{
			Image:     strings.TrimSpace(viper.GetString(KUPLAT_ROUTER_IMAGE.ViperKey)),
			HTTPPort:  viper.GetInt(KUPLAT_ROUTER_HTTP_PORT.ViperKey),
			HTTPSPort: viper.GetInt(KUPLAT_ROUTER_HTTPS_PORT.ViperKey),
		},
		Readiness:       readiness,
		SSHKeyFile:      strings.TrimSpace(viper.GetString(KUPLAT_BUILD_SSH_KEY.ViperKey)),
		KnownHosts:      SplitList(viper.GetStringSlice(KUPLAT_BUILD_KNOWN_HOSTS.ViperKey)),
		MetricsTextfile: strings.TrimSpace(viper.GetString(KUPLAT_ROOT_METRICS_TEXTFILE.ViperKey)),
	}
}

// SplitList flattens comma separated entries, as they arrive from
// environment variables, and drops blanks.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
