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

package ctr

import (
	"fmt"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/registry"
)

// RegistryCredentials contains authentication information for a container registry.
type RegistryCredentials struct {
	Username string
	Password string
	// ServerAddress is the registry host ("docker.io", "registry.example.com").
	// Empty means the entry applies to any registry without an exact match.
	ServerAddress string
}

// registryDomain returns the registry host of an image reference.
func registryDomain(ref string) (string, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", ref, err)
	}
	return reference.Domain(named), nil
}

// matchCredentials picks credentials by exact host first, then the fallback
// entry without a server address.
func matchCredentials(creds []RegistryCredentials, host string) (RegistryCredentials, bool) {
	for _, cred := range creds {
		if cred.ServerAddress != "" && cred.ServerAddress == host {
			return cred, true
		}
	}
	for _, cred := range creds {
		if cred.ServerAddress == "" {
			return cred, true
		}
	}
	return RegistryCredentials{}, false
}

// encodeRegistryAuth returns the X-Registry-Auth payload for ref, or "" when
// no credentials apply (anonymous pull).
func encodeRegistryAuth(creds []RegistryCredentials, ref string) (string, error) {
	if len(creds) == 0 {
		return "", nil
	}
	host, err := registryDomain(ref)
	if err != nil {
		return "", err
	}
	cred, ok := matchCredentials(creds, host)
	if !ok {
		return "", nil
	}
	return registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      cred.Username,
		Password:      cred.Password,
		ServerAddress: host,
	})
}
