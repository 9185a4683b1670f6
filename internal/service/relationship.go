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

// Relationship is the connection descriptor exposed to applications through
// PLATFORM_RELATIONSHIPS.
type Relationship struct {
	Service  string         `json:"service"            yaml:"service"`
	Rel      string         `json:"rel"                yaml:"rel"`
	Type     string         `json:"type"               yaml:"type"`
	Scheme   string         `json:"scheme"             yaml:"scheme"`
	Host     string         `json:"host"               yaml:"host"`
	Hostname string         `json:"hostname"           yaml:"hostname"`
	IP       string         `json:"ip,omitempty"       yaml:"ip,omitempty"`
	Port     int            `json:"port"               yaml:"port"`
	Username string         `json:"username,omitempty" yaml:"username,omitempty"`
	Password string         `json:"password,omitempty" yaml:"password,omitempty"`
	Path     string         `json:"path,omitempty"     yaml:"path,omitempty"`
	Query    map[string]any `json:"query"              yaml:"query"`
	Cluster  string         `json:"cluster"            yaml:"cluster"`
	Public   bool           `json:"public"             yaml:"public"`
}
