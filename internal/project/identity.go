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

package project

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/metadata"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Identity is the persisted, immutable part of a project.
type Identity struct {
	UID     string            `json:"uid"`
	Entropy string            `json:"entropy"`
	Created time.Time         `json:"created"`
	Config  map[string]string `json:"config,omitempty"`
}

// ConfigDomains is the identity config key holding comma separated domains.
const ConfigDomains = "domains"

func stateDir(path string) string {
	return filepath.Join(path, consts.PlatformDir, consts.LocalStateDir)
}

func identityFile(path string) string {
	return filepath.Join(stateDir(path), consts.ProjectStateFile)
}

func variablesFile(path string) string {
	return filepath.Join(stateDir(path), consts.VariablesStateFile)
}

// newIdentity derives the uid from the path, fresh randomness and the
// current time. The entropy is independent random material.
func newIdentity(path string, now time.Time) Identity {
	h := blake3.New()
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte(uuid.NewString()))
	_, _ = h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	uid := hex.EncodeToString(h.Sum(nil))

	seed := blake3.Sum256([]byte(uuid.NewString() + uuid.NewString()))
	return Identity{
		UID:     uid,
		Entropy: hex.EncodeToString(seed[:]),
		Created: now.UTC(),
		Config:  map[string]string{},
	}
}

// loadIdentity reads the identity of the project at path, creating and
// persisting a new one when none exists. An existing identity is never
// regenerated.
func loadIdentity(ctx context.Context, logger *slog.Logger, path string) (Identity, bool, error) {
	file := identityFile(path)
	if metadata.Exists(file) {
		id, err := metadata.Read[Identity](ctx, logger, file)
		if err != nil {
			return Identity{}, false, fmt.Errorf("%w: %w", errdefs.ErrLoadIdentity, err)
		}
		if id.UID == "" || id.Entropy == "" {
			return Identity{}, false, fmt.Errorf("%w: %s is missing uid or entropy", errdefs.ErrLoadIdentity, file)
		}
		if id.Config == nil {
			id.Config = map[string]string{}
		}
		return id, false, nil
	}

	id := newIdentity(path, time.Now())
	if err := metadata.Write(ctx, logger, id, file); err != nil {
		return Identity{}, false, err
	}
	logger.InfoContext(ctx, "generated project identity", "uid", id.UID, "path", path)
	return id, true, nil
}

// engineLabel is the project description stored on the project network so
// the project can be recovered without its source tree.
type engineLabel struct {
	Path   string            `json:"path,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func encodeEngineLabel(path string, config map[string]string) string {
	data, err := json.Marshal(engineLabel{Path: path, Config: config})
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeEngineLabel(value string) engineLabel {
	var l engineLabel
	if value == "" {
		return l
	}
	_ = json.Unmarshal([]byte(value), &l)
	return l
}
