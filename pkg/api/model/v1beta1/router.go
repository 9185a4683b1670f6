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

package v1beta1

type RouterDoc struct {
	APIVersion Version        `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind           `json:"kind"       yaml:"kind"`
	Metadata   RouterMetadata `json:"metadata"   yaml:"metadata"`
	Spec       RouterSpec     `json:"spec"       yaml:"spec"`
	Status     RouterStatus   `json:"status"     yaml:"status"`
}

type RouterMetadata struct {
	Name string `json:"name" yaml:"name"`
}

type RouterSpec struct {
	Image     string `json:"image"     yaml:"image"`
	HTTPPort  int    `json:"httpPort"  yaml:"httpPort"`
	HTTPSPort int    `json:"httpsPort" yaml:"httpsPort"`
}

type RouterStatus struct {
	State ContainerState `json:"state"              yaml:"state"`
	// Projects lists the short uids with a registered configuration.
	Projects []string `json:"projects,omitempty" yaml:"projects,omitempty"`
	Networks []string `json:"networks,omitempty" yaml:"networks,omitempty"`
}

// PurgeDoc lists what a purge removed, or would remove on a dry run.
type PurgeDoc struct {
	APIVersion Version  `json:"apiVersion"           yaml:"apiVersion"`
	Kind       Kind     `json:"kind"                 yaml:"kind"`
	Project    string   `json:"project,omitempty"    yaml:"project,omitempty"`
	DryRun     bool     `json:"dryRun"               yaml:"dryRun"`
	Containers []string `json:"containers,omitempty" yaml:"containers,omitempty"`
	Images     []string `json:"images,omitempty"     yaml:"images,omitempty"`
	Volumes    []string `json:"volumes,omitempty"    yaml:"volumes,omitempty"`
	Networks   []string `json:"networks,omitempty"   yaml:"networks,omitempty"`
}
