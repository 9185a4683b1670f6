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
	"fmt"
	"sort"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/network"
)

const networkDriver = "bridge"

func (c *dockerClient) CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if c.cli == nil {
		return "", ErrNotConnected
	}
	resp, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: networkDriver, Labels: labels})
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return "", fmt.Errorf("%w: network %s", ErrAlreadyExists, name)
		}
		return "", fmt.Errorf("create network %s: %w", name, err)
	}
	c.storeNetwork(name, resp.ID)
	return resp.ID, nil
}

func (c *dockerClient) InspectNetwork(ctx context.Context, name string) (NetworkInfo, error) {
	if name == "" {
		return NetworkInfo{}, ErrEmptyName
	}
	if c.cli == nil {
		return NetworkInfo{}, ErrNotConnected
	}
	ref := name
	if id, ok := c.loadNetwork(name); ok {
		ref = id
	}
	resp, err := c.cli.NetworkInspect(ctx, ref, network.InspectOptions{})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			c.dropNetwork(name)
			return NetworkInfo{}, fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
		}
		return NetworkInfo{}, fmt.Errorf("inspect network %s: %w", name, err)
	}
	c.storeNetwork(resp.Name, resp.ID)
	info := NetworkInfo{ID: resp.ID, Name: resp.Name, Labels: resp.Labels}
	for _, ep := range resp.Containers {
		info.Containers = append(info.Containers, ep.Name)
	}
	sort.Strings(info.Containers)
	return info, nil
}

func (c *dockerClient) ListNetworks(ctx context.Context, labels map[string]string) ([]NetworkInfo, error) {
	if c.cli == nil {
		return nil, ErrNotConnected
	}
	list, err := c.cli.NetworkList(ctx, network.ListOptions{Filters: labelFilter(labels)})
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	out := make([]NetworkInfo, 0, len(list))
	for _, n := range list {
		out = append(out, NetworkInfo{ID: n.ID, Name: n.Name, Labels: n.Labels})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *dockerClient) RemoveNetwork(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	defer c.dropNetwork(name)
	if err := c.cli.NetworkRemove(ctx, name); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
		}
		return fmt.Errorf("remove network %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) ConnectNetwork(ctx context.Context, netName, containerName string, aliases []string) error {
	if netName == "" || containerName == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	err := c.cli.NetworkConnect(ctx, netName, containerName, &network.EndpointSettings{Aliases: aliases})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNetworkNotFound, netName)
		}
		if cerrdefs.IsConflict(err) || cerrdefs.IsPermissionDenied(err) ||
			strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s in network %s", ErrAlreadyExists, containerName, netName)
		}
		return fmt.Errorf("connect %s to network %s: %w", containerName, netName, err)
	}
	return nil
}

func (c *dockerClient) DisconnectNetwork(ctx context.Context, netName, containerName string) error {
	if netName == "" || containerName == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	if err := c.cli.NetworkDisconnect(ctx, netName, containerName, true); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNetworkNotFound, netName)
		}
		return fmt.Errorf("disconnect %s from network %s: %w", containerName, netName, err)
	}
	return nil
}
