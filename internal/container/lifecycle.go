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

package container

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/naming"
)

// Start converges the container to running. It reports whether a new
// container had to be created.
func (c *Container) Start(ctx context.Context) (bool, error) {
	info, exists, err := c.Inspect(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", errdefs.ErrStartContainer, c.containerName, err)
	}
	if exists && info.Running {
		c.logger.DebugContext(ctx, "container already running", "name", c.containerName)
		c.metrics.ObserveStart(c.spec.Kind, false)
		return false, nil
	}
	if exists {
		c.logger.InfoContext(ctx, "starting existing container", "name", c.containerName)
		err = c.client.StartContainer(ctx, c.containerName)
		c.metrics.ObserveEngineOp("start", err)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", errdefs.ErrStartContainer, c.containerName, err)
		}
		c.metrics.ObserveStart(c.spec.Kind, false)
		return false, nil
	}

	image, err := c.resolveImage(ctx)
	if err != nil {
		return false, err
	}
	return c.create(ctx, image)
}

// StartFromBase recreates the container from the base image, bypassing the
// commit image. Builds use it so a rebuild never layers on a previous build.
func (c *Container) StartFromBase(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	err := c.client.PullImage(ctx, c.spec.BaseImage)
	c.metrics.ObserveEngineOp("pull", err)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrPullImage, c.spec.BaseImage, err)
	}
	_, err = c.create(ctx, c.spec.BaseImage)
	return err
}

func (c *Container) create(ctx context.Context, image string) (bool, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return false, err
	}
	if err := c.ensureVolumes(ctx); err != nil {
		return false, err
	}

	c.logger.InfoContext(ctx, "creating container", "name", c.containerName, "image", image)
	_, err := c.client.CreateContainer(ctx, c.engineSpec(image))
	c.metrics.ObserveEngineOp("create", err)
	created := true
	if err != nil {
		if !errors.Is(err, ctr.ErrAlreadyExists) {
			return false, fmt.Errorf("%w: %s: %w", errdefs.ErrCreateContainer, c.containerName, err)
		}
		c.logger.WarnContext(ctx, "container appeared concurrently, starting it", "name", c.containerName)
		created = false
	}
	err = c.client.StartContainer(ctx, c.containerName)
	c.metrics.ObserveEngineOp("start", err)
	if err != nil {
		return created, fmt.Errorf("%w: %s: %w", errdefs.ErrStartContainer, c.containerName, err)
	}
	c.metrics.ObserveStart(c.spec.Kind, created)
	return created, nil
}

// Stop stops, waits for and removes the container. State survives in
// volumes and the commit image only.
func (c *Container) Stop(ctx context.Context) error {
	info, exists, err := c.Inspect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrStopContainer, c.containerName, err)
	}
	if !exists {
		c.logger.DebugContext(ctx, "container absent, nothing to stop", "name", c.containerName)
		return nil
	}

	if info.Running {
		c.logger.InfoContext(ctx, "stopping container", "name", c.containerName)
		err = c.client.StopContainer(ctx, c.containerName, ctr.StopOptions{})
		c.metrics.ObserveEngineOp("stop", err)
		if err != nil && !errors.Is(err, ctr.ErrContainerNotFound) {
			return fmt.Errorf("%w: %s: %w", errdefs.ErrStopContainer, c.containerName, err)
		}
		if _, err = c.client.WaitContainer(ctx, c.containerName); err != nil &&
			!errors.Is(err, ctr.ErrContainerNotFound) {
			return fmt.Errorf("%w: %s: %w", errdefs.ErrStopContainer, c.containerName, err)
		}
	}

	err = c.client.RemoveContainer(ctx, c.containerName)
	c.metrics.ObserveEngineOp("remove", err)
	if err != nil && !errors.Is(err, ctr.ErrContainerNotFound) {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrStopContainer, c.containerName, err)
	}
	return nil
}

// Restart is Stop followed by Start.
func (c *Container) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	_, err := c.Start(ctx)
	return err
}

func (c *Container) ensureNetwork(ctx context.Context) error {
	if c.networkName == "" {
		return nil
	}
	_, err := c.client.InspectNetwork(ctx, c.networkName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ctr.ErrNetworkNotFound) {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrCreateNetwork, c.networkName, err)
	}

	labels := naming.Labels(c.spec.Project.UID, "", consts.KindProject)
	for k, v := range c.spec.Project.NetworkLabels {
		labels[k] = v
	}
	c.logger.InfoContext(ctx, "creating project network", "network", c.networkName)
	_, err = c.client.CreateNetwork(ctx, c.networkName, labels)
	c.metrics.ObserveEngineOp("network_create", err)
	if err != nil && !errors.Is(err, ctr.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrCreateNetwork, c.networkName, err)
	}
	return nil
}

func (c *Container) ensureVolumes(ctx context.Context) error {
	for _, volume := range c.volumeNames() {
		name := c.VolumeName(volume)
		_, err := c.client.InspectVolume(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ctr.ErrVolumeNotFound) {
			return fmt.Errorf("%w: %s: %w", errdefs.ErrCreateVolume, name, err)
		}
		c.logger.DebugContext(ctx, "creating volume", "volume", name)
		err = c.client.CreateVolume(ctx, name, c.volumeLabels(volume))
		c.metrics.ObserveEngineOp("volume_create", err)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", errdefs.ErrCreateVolume, name, err)
		}
	}
	return nil
}

func (c *Container) volumeNames() []string {
	names := make([]string, 0, len(c.spec.Volumes))
	for name := range c.spec.Volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Container) engineSpec(image string) ctr.ContainerSpec {
	spec := ctr.ContainerSpec{
		Name:       c.containerName,
		Image:      image,
		Hostname:   c.spec.Name,
		Entrypoint: c.spec.Entrypoint,
		Cmd:        c.spec.Cmd,
		Env:        c.spec.Env,
		WorkingDir: c.spec.WorkingDir,
		User:       c.spec.User,
		Labels:     c.Labels(),
		Network:    c.networkName,
		Aliases:    c.spec.Aliases,
		ExtraHosts: c.spec.ExtraHosts,
		Ports:      c.spec.Ports,
	}
	for _, volume := range c.volumeNames() {
		spec.Mounts = append(spec.Mounts, ctr.Mount{
			Source: c.VolumeName(volume),
			Target: c.spec.Volumes[volume],
		})
	}
	spec.Mounts = append(spec.Mounts, c.spec.Binds...)
	return spec
}
