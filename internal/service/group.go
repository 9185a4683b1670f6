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

import (
	"fmt"
	"strings"

	"github.com/eminwux/kuplat/internal/errdefs"
)

// Group orders service startup relative to applications.
type Group int

const (
	GroupPreAppA Group = iota
	GroupPreAppB
	GroupPostAppA
	GroupPostAppB
)

// PreAppGroups start before any application.
var PreAppGroups = []Group{GroupPreAppA, GroupPreAppB}

// PostAppGroups start after every application.
var PostAppGroups = []Group{GroupPostAppA, GroupPostAppB}

var groupNames = map[Group]string{
	GroupPreAppA:  "pre-app-a",
	GroupPreAppB:  "pre-app-b",
	GroupPostAppA: "post-app-a",
	GroupPostAppB: "post-app-b",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// ParseGroup accepts "pre-app-a", "pre_app_b", "POST-APP-A", ...
func ParseGroup(s string) (Group, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for g, name := range groupNames {
		if name == norm {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown startup group %q", errdefs.ErrParser, s)
}
