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

type ProjectDoc struct {
	APIVersion Version         `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind            `json:"kind"       yaml:"kind"`
	Metadata   ProjectMetadata `json:"metadata"   yaml:"metadata"`
	Spec       ProjectSpec     `json:"spec"       yaml:"spec"`
	Status     ProjectStatus   `json:"status"     yaml:"status"`
}

type ProjectMetadata struct {
	// Name is the short uid, which every engine object name carries.
	Name string `json:"name" yaml:"name"`
	UID  string `json:"uid"  yaml:"uid"`
}

type ProjectSpec struct {
	// Path is empty for projects recovered from the engine.
	Path      string   `json:"path,omitempty"      yaml:"path,omitempty"`
	Network   string   `json:"network"             yaml:"network"`
	Domains   []string `json:"domains,omitempty"   yaml:"domains,omitempty"`
	Hostnames []string `json:"hostnames,omitempty" yaml:"hostnames,omitempty"`
}

type ProjectStatus struct {
	Routed     bool           `json:"routed"               yaml:"routed"`
	Running    int            `json:"running"              yaml:"running"`
	Total      int            `json:"total"                yaml:"total"`
	Containers []ContainerDoc `json:"containers,omitempty" yaml:"containers,omitempty"`
}

// NewProjectDoc returns a copy of from with the type fields filled in.
func NewProjectDoc(from *ProjectDoc) *ProjectDoc {
	if from == nil {
		return &ProjectDoc{APIVersion: APIVersionV1Beta1, Kind: KindProject}
	}
	doc := *from
	doc.APIVersion = APIVersionV1Beta1
	doc.Kind = KindProject
	return &doc
}
