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

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/kuplat/internal/errdefs"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Exists reports whether a state file is present.
func Exists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

// Write stores value as indented JSON at file, creating the parent directory
// when needed. The write is atomic: readers observe either the old or the new
// content.
func Write(ctx context.Context, logger *slog.Logger, value any, file string) error {
	logger.DebugContext(ctx, "writing state file", "file", file)

	if err := os.MkdirAll(filepath.Dir(file), dirPerm); err != nil {
		logger.ErrorContext(ctx, "failed to create state dir", "file", file, "error", err)
		return fmt.Errorf("%w: mkdir: %w", errdefs.ErrWriteMetadata, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", errdefs.ErrWriteMetadata, file, err)
	}
	data = append(data, '\n')

	if err = atomicWriteFile(file, data, filePerm); err != nil {
		logger.ErrorContext(ctx, "failed to write state file", "file", file, "error", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrWriteMetadata, file, err)
	}
	return nil
}

// atomicWriteFile writes to a temp file in the same dir, fsyncs, then renames.
func atomicWriteFile(file string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(file)

	f, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if err = f.Chmod(mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err = os.Rename(tmp, file); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if d, openErr := os.Open(dir); openErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Read decodes the JSON state file into T. A missing file yields
// errdefs.ErrMissingMetadataFile.
func Read[T any](ctx context.Context, logger *slog.Logger, file string) (T, error) {
	var zero T
	logger.DebugContext(ctx, "reading state file", "file", file)

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("%w: %s", errdefs.ErrMissingMetadataFile, file)
		}
		return zero, fmt.Errorf("read %s: %w", file, err)
	}
	var out T
	if err = json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("unmarshal %s: %w", file, err)
	}
	return out, nil
}

// ReadOrDefault behaves like Read but returns def when the file is missing.
func ReadOrDefault[T any](ctx context.Context, logger *slog.Logger, file string, def T) (T, error) {
	out, err := Read[T](ctx, logger, file)
	if errors.Is(err, errdefs.ErrMissingMetadataFile) {
		return def, nil
	}
	return out, err
}

// Remove deletes a state file; a missing file is not an error.
func Remove(file string) error {
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
