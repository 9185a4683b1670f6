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
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func (c *dockerClient) InspectContainer(ctx context.Context, name string) (ContainerInfo, error) {
	if name == "" {
		return ContainerInfo{}, ErrEmptyName
	}
	if c.cli == nil {
		return ContainerInfo{}, ErrNotConnected
	}
	resp, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ContainerInfo{}, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return ContainerInfo{}, fmt.Errorf("inspect container %s: %w", name, err)
	}

	info := ContainerInfo{
		ID:      resp.ID,
		Name:    strings.TrimPrefix(resp.Name, "/"),
		ImageID: resp.Image,
	}
	if resp.Config != nil {
		info.Image = resp.Config.Image
		info.Labels = resp.Config.Labels
	}
	if resp.State != nil {
		info.State = resp.State.Status
		info.Running = resp.State.Running
	}
	if resp.NetworkSettings != nil {
		for netName := range resp.NetworkSettings.Networks {
			info.Networks = append(info.Networks, netName)
		}
		sort.Strings(info.Networks)
	}
	return info, nil
}

func (c *dockerClient) ListContainers(ctx context.Context, labels map[string]string) ([]ContainerInfo, error) {
	if c.cli == nil {
		return nil, ErrNotConnected
	}
	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: labelFilter(labels)})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]ContainerInfo, 0, len(list))
	for _, item := range list {
		info := ContainerInfo{
			ID:      item.ID,
			Image:   item.Image,
			ImageID: item.ImageID,
			State:   item.State,
			Running: item.State == "running",
			Labels:  item.Labels,
		}
		if len(item.Names) > 0 {
			info.Name = strings.TrimPrefix(item.Names[0], "/")
		}
		if item.NetworkSettings != nil {
			for netName := range item.NetworkSettings.Networks {
				info.Networks = append(info.Networks, netName)
			}
			sort.Strings(info.Networks)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *dockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if spec.Name == "" {
		return "", ErrEmptyName
	}
	if spec.Image == "" {
		return "", ErrInvalidImage
	}
	if c.cli == nil {
		return "", ErrNotConnected
	}

	cfg, hostCfg, netCfg, err := buildContainerConfig(spec)
	if err != nil {
		return "", err
	}

	var platform *ocispec.Platform
	if c.platform != nil {
		p := *c.platform
		platform = &p
	}

	c.logger.DebugContext(ctx, "creating container", "name", spec.Name, "image", spec.Image)
	resp, err := c.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, platform, spec.Name)
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return "", fmt.Errorf("%w: container %s", ErrAlreadyExists, spec.Name)
		}
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}
	for _, w := range resp.Warnings {
		c.logger.WarnContext(ctx, "container create warning", "name", spec.Name, "warning", w)
	}
	return resp.ID, nil
}

func buildContainerConfig(
	spec ContainerSpec,
) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed, bindings, err := buildPorts(spec.Ports)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Hostname:     spec.Hostname,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		WorkingDir:   spec.WorkingDir,
		User:         spec.User,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}
	if len(spec.Entrypoint) > 0 {
		cfg.Entrypoint = spec.Entrypoint
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		ExtraHosts:   spec.ExtraHosts,
	}
	for _, m := range spec.Mounts {
		mt := mount.Mount{
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
			Type:     mount.TypeVolume,
		}
		if m.Bind {
			mt.Type = mount.TypeBind
		}
		hostCfg.Mounts = append(hostCfg.Mounts, mt)
	}

	var netCfg *network.NetworkingConfig
	if spec.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.Network)
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {Aliases: spec.Aliases},
			},
		}
	}
	return cfg, hostCfg, netCfg, nil
}

func buildPorts(ports []PortBinding) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port %d/%s: %w", p.ContainerPort, proto, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: strconv.Itoa(p.HostPort)})
	}
	return exposed, bindings, nil
}

func (c *dockerClient) StartContainer(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	if err := c.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("start container %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) StopContainer(ctx context.Context, name string, opts StopOptions) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	stopOpts := container.StopOptions{}
	if opts.Timeout != nil {
		secs := int(opts.Timeout.Seconds())
		stopOpts.Timeout = &secs
	}
	if err := c.cli.ContainerStop(ctx, name, stopOpts); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("stop container %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) WaitContainer(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, ErrEmptyName
	}
	if c.cli == nil {
		return 0, ErrNotConnected
	}
	statusCh, errCh := c.cli.ContainerWait(ctx, name, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if cerrdefs.IsNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return 0, fmt.Errorf("wait container %s: %w", name, err)
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return st.StatusCode, fmt.Errorf("wait container %s: %s", name, st.Error.Message)
		}
		return st.StatusCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *dockerClient) RemoveContainer(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: false})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) KillContainer(ctx context.Context, name, signal string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	if err := c.cli.ContainerKill(ctx, name, signal); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("kill container %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) CommitContainer(ctx context.Context, name string, opts CommitOptions) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if opts.Reference == "" {
		return "", ErrInvalidImage
	}
	if c.cli == nil {
		return "", ErrNotConnected
	}
	commitOpts := container.CommitOptions{
		Reference: opts.Reference,
		Comment:   opts.Comment,
	}
	if len(opts.Labels) > 0 {
		commitOpts.Config = &container.Config{Labels: opts.Labels}
	}
	resp, err := c.cli.ContainerCommit(ctx, name, commitOpts)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return "", fmt.Errorf("commit container %s: %w", name, err)
	}
	return resp.ID, nil
}

func (c *dockerClient) CopyToContainer(ctx context.Context, name, dir string, content io.Reader) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	err := c.cli.CopyToContainer(ctx, name, dir, content, container.CopyToContainerOptions{})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("copy to container %s:%s: %w", name, dir, err)
	}
	return nil
}

func labelFilter(labels map[string]string) filters.Args {
	args := filters.NewArgs()
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args.Add("label", k+"="+labels[k])
	}
	return args
}

// IsNotFound reports whether err denotes a missing engine object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound) ||
		errors.Is(err, ErrImageNotFound) ||
		errors.Is(err, ErrNetworkNotFound) ||
		errors.Is(err, ErrVolumeNotFound)
}
