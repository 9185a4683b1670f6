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

// Package container wraps one engine container: its identity, image
// resolution, lifecycle transitions and in-container command execution.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/opencontainers/go-digest"
)

// ProjectRef binds a container to the project that owns it.
type ProjectRef struct {
	UID string
	// NetworkLabels are added to the project network when it is created.
	NetworkLabels map[string]string
}

// Spec is everything a concrete container type contributes.
type Spec struct {
	Project ProjectRef
	Name    string
	Kind    string

	// ContainerName overrides the derived kuplat_<short>_<name>.
	ContainerName string
	// Standalone containers are not attached to the project network.
	Standalone bool
	// DisableCommit turns off commit image resolution.
	DisableCommit bool

	BaseImage  string
	Entrypoint []string
	Cmd        []string
	Env        []string
	// Volumes maps a volume name (relative to the container) to its mount path.
	Volumes    map[string]string
	Binds      []ctr.Mount
	WorkingDir string
	User       string
	Ports      []ctr.PortBinding
	ExtraHosts []string
	Aliases    []string
	Labels     map[string]string

	// ConfigDigest fingerprints the configuration a commit image was built from.
	ConfigDigest digest.Digest
}

// Container is one managed engine container.
type Container struct {
	logger  *slog.Logger
	client  ctr.Client
	metrics *metrics.Metrics
	spec    Spec

	containerName string
	networkName   string
	commitImage   string

	hasCommit *bool
}

var errMissingImage = errors.New("base image is required")

// New validates spec and derives every engine name from it.
func New(logger *slog.Logger, client ctr.Client, m *metrics.Metrics, spec Spec) (*Container, error) {
	if spec.BaseImage == "" {
		return nil, fmt.Errorf("%s: %w", spec.Name, errMissingImage)
	}
	short := naming.ShortUID(spec.Project.UID)

	c := &Container{
		logger:  logger.With("container", spec.Name, "kind", spec.Kind),
		client:  client,
		metrics: m,
		spec:    spec,
	}

	c.containerName = spec.ContainerName
	if c.containerName == "" {
		name, err := naming.BuildContainerName(short, spec.Name)
		if err != nil {
			return nil, err
		}
		c.containerName = name
	}
	if !spec.Standalone {
		network, err := naming.BuildNetworkName(short)
		if err != nil {
			return nil, err
		}
		c.networkName = network
	}
	if !spec.DisableCommit {
		image, err := naming.BuildCommitImage(short, spec.Name)
		if err != nil {
			return nil, err
		}
		c.commitImage = image
	}
	return c, nil
}

// Name is the logical name ("db").
func (c *Container) Name() string { return c.spec.Name }

// Kind is service, application or router.
func (c *Container) Kind() string { return c.spec.Kind }

// ContainerName is the engine-level name.
func (c *Container) ContainerName() string { return c.containerName }

// NetworkName is the project network, empty for standalone containers.
func (c *Container) NetworkName() string { return c.networkName }

// CommitImage is the build cache image reference, empty when disabled.
func (c *Container) CommitImage() string { return c.commitImage }

// BaseImage is the pristine image.
func (c *Container) BaseImage() string { return c.spec.BaseImage }

// ProjectUID returns the owning project's uid.
func (c *Container) ProjectUID() string { return c.spec.Project.UID }

// ConfigDigest returns the digest of the configuration this container runs.
func (c *Container) ConfigDigest() digest.Digest { return c.spec.ConfigDigest }

// Address is the hostname other containers on the project network use.
func (c *Container) Address() string { return c.containerName }

// Logger returns the container-scoped logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// Client returns the engine client.
func (c *Container) Client() ctr.Client { return c.client }

// Labels returns the labels stamped on the container and its volumes.
func (c *Container) Labels() map[string]string {
	labels := naming.Labels(c.spec.Project.UID, c.spec.Name, c.spec.Kind)
	maps.Copy(labels, c.spec.Labels)
	return labels
}

// VolumeName returns the engine name of a declared volume.
func (c *Container) VolumeName(volume string) string {
	return c.containerName + "_" + volume
}

// Inspect returns the engine state; exists is false when the container is absent.
func (c *Container) Inspect(ctx context.Context) (ctr.ContainerInfo, bool, error) {
	info, err := c.client.InspectContainer(ctx, c.containerName)
	if err != nil {
		if errors.Is(err, ctr.ErrContainerNotFound) {
			return ctr.ContainerInfo{}, false, nil
		}
		return ctr.ContainerInfo{}, false, err
	}
	return info, true, nil
}

// Exists reports whether the container is present in the engine.
func (c *Container) Exists(ctx context.Context) (bool, error) {
	_, exists, err := c.Inspect(ctx)
	return exists, err
}

// IsRunning reports whether the container exists and is running.
func (c *Container) IsRunning(ctx context.Context) (bool, error) {
	info, exists, err := c.Inspect(ctx)
	if err != nil {
		return false, err
	}
	return exists && info.Running, nil
}

func (c *Container) volumeLabels(volume string) map[string]string {
	labels := c.Labels()
	labels[consts.LabelVolume] = volume
	return labels
}
