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

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/volume"
)

func (c *dockerClient) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	if _, err := c.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels}); err != nil {
		return fmt.Errorf("create volume %s: %w", name, err)
	}
	return nil
}

func (c *dockerClient) InspectVolume(ctx context.Context, name string) (VolumeInfo, error) {
	if name == "" {
		return VolumeInfo{}, ErrEmptyName
	}
	if c.cli == nil {
		return VolumeInfo{}, ErrNotConnected
	}
	v, err := c.cli.VolumeInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return VolumeInfo{}, fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
		}
		return VolumeInfo{}, fmt.Errorf("inspect volume %s: %w", name, err)
	}
	return VolumeInfo{Name: v.Name, Labels: v.Labels}, nil
}

func (c *dockerClient) ListVolumes(ctx context.Context, labels map[string]string) ([]VolumeInfo, error) {
	if c.cli == nil {
		return nil, ErrNotConnected
	}
	resp, err := c.cli.VolumeList(ctx, volume.ListOptions{Filters: labelFilter(labels)})
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	out := make([]VolumeInfo, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		out = append(out, VolumeInfo{Name: v.Name, Labels: v.Labels})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *dockerClient) RemoveVolume(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	if err := c.cli.VolumeRemove(ctx, name, true); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
		}
		return fmt.Errorf("remove volume %s: %w", name, err)
	}
	return nil
}
