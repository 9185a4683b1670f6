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

package shared

import (
	"io"
	"log/slog"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/types"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/spf13/cobra"
)

// LoggerFromCmd extracts the slog logger from the Cobra command context.
func LoggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// ControllerFromCmd instantiates a controller.Exec configured from the
// persistent flags, environment and config file.
func ControllerFromCmd(cmd *cobra.Command) (*controller.Exec, error) {
	logger, err := LoggerFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	opts := config.ControllerOptions()
	logger.DebugContext(cmd.Context(), "building controller", "project", opts.ProjectPath, "docker-host", opts.DockerHost)
	return controller.NewControllerExec(cmd.Context(), logger, opts), nil
}

// GetControllerWithMock returns the controller stored under mockKey in the
// command context, or a real controller seen through the T interface.
func GetControllerWithMock[T any](cmd *cobra.Command, mockKey any, wrapper func(*controller.Exec) T) (T, error) {
	var zero T

	if mockCtrl, ok := cmd.Context().Value(mockKey).(T); ok {
		return mockCtrl, nil
	}

	if _, err := LoggerFromCmd(cmd); err != nil {
		return zero, err
	}
	realCtrl, err := ControllerFromCmd(cmd)
	if err != nil {
		return zero, err
	}
	return wrapper(realCtrl), nil
}

// Release closes ctrl when it holds resources. Close failures are logged
// because the command result is already decided.
func Release(cmd *cobra.Command, ctrl any) {
	closer, ok := ctrl.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		if logger, lerr := LoggerFromCmd(cmd); lerr == nil {
			logger.WarnContext(cmd.Context(), "failed to release controller", "error", err)
		}
	}
}
