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

package naming

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
)

var (
	errEmptyShortUID = errors.New("project short uid cannot be empty")
	errEmptyName     = errors.New("name cannot be empty")
)

// ShortUID returns the first consts.ShortUIDLength characters of uid.
func ShortUID(uid string) string {
	uid = strings.TrimSpace(uid)
	if len(uid) <= consts.ShortUIDLength {
		return uid
	}
	return uid[:consts.ShortUIDLength]
}

// BuildNetworkName constructs the network shared by every container of a project.
// Format: kuplat_{short}
func BuildNetworkName(shortUID string) (string, error) {
	shortUID = strings.TrimSpace(shortUID)
	if shortUID == "" {
		return "", errEmptyShortUID
	}
	return consts.NamePrefix + shortUID, nil
}

// BuildContainerName constructs a globally unique container name.
// Format: kuplat_{short}_{name}
func BuildContainerName(shortUID, name string) (string, error) {
	network, err := BuildNetworkName(shortUID)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errEmptyName
	}
	return network + "_" + name, nil
}

// BuildVolumeName constructs the name of a volume owned by a container.
// Format: kuplat_{short}_{name}_{volume}
func BuildVolumeName(shortUID, name, volume string) (string, error) {
	container, err := BuildContainerName(shortUID, name)
	if err != nil {
		return "", err
	}
	volume = strings.TrimSpace(volume)
	if volume == "" {
		return "", errEmptyName
	}
	return container + "_" + volume, nil
}

// BuildCommitImage constructs the commit image reference for a container.
// Format: kuplat-commit:{name}_{short}
func BuildCommitImage(shortUID, name string) (string, error) {
	shortUID = strings.TrimSpace(shortUID)
	name = strings.TrimSpace(name)
	if shortUID == "" {
		return "", errEmptyShortUID
	}
	if name == "" {
		return "", errEmptyName
	}
	return fmt.Sprintf("%s:%s_%s", consts.CommitRepository, name, shortUID), nil
}

// Labels returns the label set binding an engine object to a project.
func Labels(uid, name, kind string) map[string]string {
	labels := map[string]string{
		consts.LabelRoot:            "",
		consts.LabelProjectUID:      uid,
		consts.LabelProjectShortUID: ShortUID(uid),
	}
	if name != "" {
		labels[consts.LabelName] = name
	}
	if kind != "" {
		labels[consts.LabelKind] = kind
	}
	return labels
}

// ProjectFilter returns the label selector matching every object of a project.
func ProjectFilter(uid string) map[string]string {
	return map[string]string{consts.LabelProjectUID: uid}
}
