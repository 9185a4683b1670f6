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

// Version is the apiVersion of a printable document.
type Version string

// Kind names the type of a printable document.
type Kind string

const (
	// APIVersionV1Beta1 is the canonical API version for this package.
	APIVersionV1Beta1 Version = "v1beta1"
)

// Kinds.
const (
	// KindProject identifies project documents.
	KindProject Kind = "Project"
	// KindContainer identifies container documents.
	KindContainer Kind = "Container"
	// KindRouter identifies router documents.
	KindRouter Kind = "Router"
	// KindPurge identifies purge report documents.
	KindPurge Kind = "PurgeReport"
)

// Common printable state strings.
const (
	StateRunningStr = "Running"
	StateStoppedStr = "Stopped"
	StateAbsentStr  = "Absent"
	StateUnknownStr = "Unknown"
)
