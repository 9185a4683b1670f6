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

import "errors"

var (
	// ErrEmptyName indicates that an object name is required.
	ErrEmptyName = errors.New("ctr: name is required")
	// ErrInvalidImage indicates that an image reference is required.
	ErrInvalidImage = errors.New("ctr: image reference is required")
	// ErrNotConnected indicates Connect was not called.
	ErrNotConnected = errors.New("ctr: client is not connected")
	// ErrContainerNotFound indicates that a container was not found.
	ErrContainerNotFound = errors.New("ctr: container not found")
	// ErrImageNotFound indicates that an image was not found.
	ErrImageNotFound = errors.New("ctr: image not found")
	// ErrNetworkNotFound indicates that a network was not found.
	ErrNetworkNotFound = errors.New("ctr: network not found")
	// ErrVolumeNotFound indicates that a volume was not found.
	ErrVolumeNotFound = errors.New("ctr: volume not found")
	// ErrAlreadyExists indicates a create raced with an existing object.
	ErrAlreadyExists = errors.New("ctr: object already exists")
)
