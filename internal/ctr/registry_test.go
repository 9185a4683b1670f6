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

//nolint:testpackage // exercises unexported credential matching
package ctr

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestRegistryDomain(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"nginx:1.27-alpine", "docker.io"},
		{"library/redis", "docker.io"},
		{"ghcr.io/acme/app:1", "ghcr.io"},
		{"localhost:5000/app", "localhost:5000"},
	}
	for _, tt := range tests {
		got, err := registryDomain(tt.ref)
		if err != nil {
			t.Fatalf("registryDomain(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("registryDomain(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
	if _, err := registryDomain("bad ref with spaces"); err == nil {
		t.Errorf("expected error for invalid reference")
	}
}

func TestMatchCredentials(t *testing.T) {
	creds := []RegistryCredentials{
		{Username: "fallback"},
		{Username: "ghcr", ServerAddress: "ghcr.io"},
	}
	if c, ok := matchCredentials(creds, "ghcr.io"); !ok || c.Username != "ghcr" {
		t.Errorf("exact match = %+v, %v", c, ok)
	}
	if c, ok := matchCredentials(creds, "docker.io"); !ok || c.Username != "fallback" {
		t.Errorf("fallback match = %+v, %v", c, ok)
	}
	if _, ok := matchCredentials(creds[1:], "docker.io"); ok {
		t.Errorf("expected no match without fallback")
	}
}

func TestEncodeRegistryAuth(t *testing.T) {
	auth, err := encodeRegistryAuth(nil, "nginx")
	if err != nil || auth != "" {
		t.Fatalf("anonymous auth = %q, %v", auth, err)
	}

	auth, err = encodeRegistryAuth([]RegistryCredentials{{Username: "u", Password: "p"}}, "ghcr.io/acme/app")
	if err != nil {
		t.Fatalf("encodeRegistryAuth: %v", err)
	}
	raw, err := base64.URLEncoding.DecodeString(auth)
	if err != nil {
		t.Fatalf("decode auth: %v", err)
	}
	var decoded map[string]string
	if err = json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal auth: %v", err)
	}
	if decoded["username"] != "u" || decoded["serveraddress"] != "ghcr.io" {
		t.Errorf("decoded auth = %v", decoded)
	}
}
