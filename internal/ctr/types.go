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

import (
	"io"
	"strings"
	"time"
)

// Mount attaches a named volume or a host path to a container.
type Mount struct {
	// Source is a volume name, or a host path when Bind is set.
	Source   string
	Target   string
	Bind     bool
	ReadOnly bool
}

// PortBinding publishes a container port on the host.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	// Protocol defaults to tcp.
	Protocol string
}

// ContainerSpec describes how to create a new container.
type ContainerSpec struct {
	// Name is the engine-level container name.
	Name       string
	Image      string
	Hostname   string
	Entrypoint []string
	Cmd        []string
	Env        []string
	WorkingDir string
	User       string
	Labels     map[string]string
	Mounts     []Mount
	// Network is joined at creation time; Aliases apply to that network.
	Network    string
	Aliases    []string
	ExtraHosts []string
	Ports      []PortBinding
}

// ContainerInfo is the subset of engine state the orchestration layer needs.
type ContainerInfo struct {
	ID       string
	Name     string
	Image    string
	ImageID  string
	State    string
	Running  bool
	Labels   map[string]string
	Networks []string
}

// CommitOptions controls how a container is snapshotted into an image.
type CommitOptions struct {
	Reference string
	Labels    map[string]string
	Comment   string
}

// ExecSpec describes a command executed inside a running container.
type ExecSpec struct {
	Cmd        []string
	User       string
	WorkingDir string
	Env        []string
}

// ExecResult carries the captured output of a finished exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined.
func (r ExecResult) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return strings.TrimRight(r.Stdout, "\n") + "\n" + r.Stderr
	}
}

// TermSize is a terminal size in character cells.
type TermSize struct {
	Height uint
	Width  uint
}

// Streams wires an interactive exec to the caller's terminal.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Tty allocates a pseudo terminal; stderr is merged into stdout.
	Tty  bool
	Size *TermSize
}

// ImageInfo describes an image in the local store.
type ImageInfo struct {
	ID     string
	Tags   []string
	Labels map[string]string
}

// NetworkInfo describes an engine network.
type NetworkInfo struct {
	ID     string
	Name   string
	Labels map[string]string
	// Containers lists the names of attached containers.
	Containers []string
}

// VolumeInfo describes an engine volume.
type VolumeInfo struct {
	Name   string
	Labels map[string]string
}

// StopOptions describes options for stopping a container.
type StopOptions struct {
	// Timeout is the grace period before the engine kills the container.
	Timeout *time.Duration
}
