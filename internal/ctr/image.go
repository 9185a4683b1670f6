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
	"io"
	"sort"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
)

func (c *dockerClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, ErrInvalidImage
	}
	if c.cli == nil {
		return false, ErrNotConnected
	}
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect image %s: %w", ref, err)
	}
	return true, nil
}

// PullImage pulls ref unless it is already present locally.
func (c *dockerClient) PullImage(ctx context.Context, ref string) error {
	exists, err := c.ImageExists(ctx, ref)
	if err != nil {
		return err
	}
	if exists {
		c.logger.DebugContext(ctx, "image already present", "image", ref)
		return nil
	}

	auth, err := encodeRegistryAuth(c.opts.Registries, ref)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "pulling image", "image", ref, "platform", c.platformString())
	rc, err := c.cli.ImagePull(ctx, ref, image.PullOptions{
		Platform:     c.platformString(),
		RegistryAuth: auth,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer rc.Close()

	if err = jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

func (c *dockerClient) RemoveImage(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrInvalidImage
	}
	if c.cli == nil {
		return ErrNotConnected
	}
	_, err := c.cli.ImageRemove(ctx, ref, image.RemoveOptions{Force: true, PruneChildren: true})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

func (c *dockerClient) ListImages(ctx context.Context, labels map[string]string) ([]ImageInfo, error) {
	if c.cli == nil {
		return nil, ErrNotConnected
	}
	list, err := c.cli.ImageList(ctx, image.ListOptions{Filters: labelFilter(labels)})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]ImageInfo, 0, len(list))
	for _, img := range list {
		out = append(out, ImageInfo{ID: img.ID, Tags: img.RepoTags, Labels: img.Labels})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
