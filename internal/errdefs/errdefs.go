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

package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWriteMetadata       = errors.New("failed to write metadata file")
	ErrMissingMetadataFile = errors.New("missing metadata file")
	ErrConfig              = errors.New("config error")
	ErrLoggerNotFound      = errors.New("logger not found in context")
	ErrConnectEngine       = errors.New("failed to connect to container engine")

	ErrInit              = errors.New("invalid project")
	ErrProjectNotFound   = errors.New("project not found")
	ErrProjectPathNeeded = errors.New("operation requires the project source path")
	ErrLoadIdentity      = errors.New("failed to load project identity")
	ErrLoadVariables     = errors.New("failed to load project variables")
	ErrLocked            = errors.New("another operation holds the lock")

	ErrParser                 = errors.New("configuration error")
	ErrUnknownServiceType     = errors.New("unknown service type")
	ErrUnknownApplicationType = errors.New("unknown application type")
	ErrUnsupportedVersion     = errors.New("unsupported version")
	ErrInvalidRoute           = fmt.Errorf("%w: invalid route", ErrParser)
	ErrContainerNotFound      = errors.New("container not found")

	ErrState            = errors.New("invalid state")
	ErrDependency       = fmt.Errorf("%w: missing dependency", ErrState)
	ErrNotRunning       = fmt.Errorf("%w: container is not running", ErrState)
	ErrRouterNotRunning = fmt.Errorf("%w: router is not running", ErrState)
	ErrCommand          = errors.New("command failed")
	ErrReadinessTimeout = errors.New("service did not become ready")

	ErrCreateNetwork   = errors.New("failed to create network")
	ErrCreateVolume    = errors.New("failed to create volume")
	ErrCreateContainer = errors.New("failed to create container")
	ErrStartContainer  = errors.New("failed to start container")
	ErrStopContainer   = errors.New("failed to stop container")
	ErrPullImage       = errors.New("failed to pull image")
	ErrCommitContainer = errors.New("failed to commit container")
	ErrPurge           = errors.New("failed to purge")
	ErrBuild           = errors.New("build failed")
	ErrDeploy          = errors.New("deploy failed")
	ErrRouterConfig    = errors.New("failed to apply router configuration")
)

// StateError reports an operation attempted against a container in the wrong state.
type StateError struct {
	Container string
	Op        string
	Reason    error
}

func (e *StateError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Container, ErrState)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Container, e.Reason)
}

func (e *StateError) Unwrap() error {
	if e.Reason == nil {
		return ErrState
	}
	return e.Reason
}

// NewStateError builds a StateError. reason should wrap ErrState.
func NewStateError(container, op string, reason error) *StateError {
	return &StateError{Container: container, Op: op, Reason: reason}
}

// CommandError carries the exit code and output of a failed in-container command.
type CommandError struct {
	Container string
	Command   string
	ExitCode  int
	Output    string
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%v in %s: %q exited with code %d", ErrCommand, e.Container, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%v in %s: %q exited with code %d: %s", ErrCommand, e.Container, e.Command, e.ExitCode, out)
}

func (e *CommandError) Unwrap() error { return ErrCommand }
