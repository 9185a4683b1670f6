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

type ContainerDoc struct {
	APIVersion Version           `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind              `json:"kind"       yaml:"kind"`
	Metadata   ContainerMetadata `json:"metadata"   yaml:"metadata"`
	Spec       ContainerSpec     `json:"spec"       yaml:"spec"`
	Status     ContainerStatus   `json:"status"     yaml:"status"`
}

type ContainerMetadata struct {
	Name   string            `json:"name"             yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

type ContainerSpec struct {
	// ContainerName is the engine-level name.
	ContainerName string `json:"containerName"  yaml:"containerName"`
	ProjectUID    string `json:"projectUid"     yaml:"projectUid"`
	// Role is service, application or router.
	Role string `json:"role"           yaml:"role"`
	// Type is the declared "type:version" string.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

type ContainerStatus struct {
	State       ContainerState `json:"state"           yaml:"state"`
	Image       string         `json:"image,omitempty" yaml:"image,omitempty"`
	Provisioned bool           `json:"provisioned"     yaml:"provisioned"`
	Stale       bool           `json:"stale"           yaml:"stale"`
}

type ContainerState int

const (
	ContainerStateAbsent ContainerState = iota
	ContainerStateStopped
	ContainerStateRunning
	ContainerStateUnknown
)

func (c ContainerState) String() string {
	switch c {
	case ContainerStateAbsent:
		return StateAbsentStr
	case ContainerStateStopped:
		return StateStoppedStr
	case ContainerStateRunning:
		return StateRunningStr
	case ContainerStateUnknown:
		return StateUnknownStr
	}
	return StateUnknownStr
}

// MarshalText prints the state by name in json and yaml output.
func (c ContainerState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText reads a state printed by MarshalText.
func (c *ContainerState) UnmarshalText(text []byte) error {
	*c = ParseContainerState(string(text))
	return nil
}

// ParseContainerState maps a printable state back to its value.
func ParseContainerState(s string) ContainerState {
	switch s {
	case StateAbsentStr, "absent":
		return ContainerStateAbsent
	case StateStoppedStr, "stopped":
		return ContainerStateStopped
	case StateRunningStr, "running":
		return ContainerStateRunning
	}
	return ContainerStateUnknown
}
