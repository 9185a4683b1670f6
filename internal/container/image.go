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
	"slices"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
)

// HasCommitImage reports whether the build cache image exists. The answer
// is cached until the next Commit or Purge.
func (c *Container) HasCommitImage(ctx context.Context) (bool, error) {
	if c.commitImage == "" {
		return false, nil
	}
	if c.hasCommit != nil {
		return *c.hasCommit, nil
	}
	exists, err := c.client.ImageExists(ctx, c.commitImage)
	if err != nil {
		return false, err
	}
	c.hasCommit = &exists
	return exists, nil
}

// Image returns the image a newly created container would use.
func (c *Container) Image(ctx context.Context) (string, error) {
	hasCommit, err := c.HasCommitImage(ctx)
	if err != nil {
		return "", err
	}
	if hasCommit {
		return c.commitImage, nil
	}
	return c.spec.BaseImage, nil
}

// IsProvisioned reports whether the container runs from its commit image.
func (c *Container) IsProvisioned(ctx context.Context) (bool, error) {
	return c.HasCommitImage(ctx)
}

func (c *Container) resolveImage(ctx context.Context) (string, error) {
	image, err := c.Image(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errdefs.ErrPullImage, c.spec.BaseImage, err)
	}
	if image == c.commitImage {
		c.logger.DebugContext(ctx, "using commit image", "image", image)
		return image, nil
	}
	err = c.client.PullImage(ctx, image)
	c.metrics.ObserveEngineOp("pull", err)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errdefs.ErrPullImage, image, err)
	}
	return image, nil
}

// Commit snapshots the container into its commit image.
func (c *Container) Commit(ctx context.Context) (string, error) {
	if c.commitImage == "" {
		return "", fmt.Errorf("%w: %s has no commit image", errdefs.ErrCommitContainer, c.spec.Name)
	}
	exists, err := c.Exists(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errdefs.ErrCommitContainer, c.containerName, err)
	}
	if !exists {
		return "", errdefs.NewStateError(c.containerName, "commit", errdefs.ErrNotRunning)
	}

	labels := c.Labels()
	if c.spec.ConfigDigest != "" {
		labels[consts.LabelConfigDigest] = c.spec.ConfigDigest.String()
	}
	c.logger.InfoContext(ctx, "committing container", "name", c.containerName, "image", c.commitImage)
	id, err := c.client.CommitContainer(ctx, c.containerName, ctr.CommitOptions{
		Reference: c.commitImage,
		Labels:    labels,
		Comment:   "kuplat build of " + c.spec.Name,
	})
	c.metrics.ObserveEngineOp("commit", err)
	c.hasCommit = nil
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errdefs.ErrCommitContainer, c.containerName, err)
	}
	return id, nil
}

// CommitDigest returns the configuration digest stored on the commit image,
// or "" when there is no commit image or it carries no digest.
func (c *Container) CommitDigest(ctx context.Context) (string, error) {
	hasCommit, err := c.HasCommitImage(ctx)
	if err != nil || !hasCommit {
		return "", err
	}
	images, err := c.client.ListImages(ctx, map[string]string{
		consts.LabelProjectUID: c.spec.Project.UID,
		consts.LabelName:       c.spec.Name,
	})
	if err != nil {
		return "", err
	}
	for _, img := range images {
		if slices.Contains(img.Tags, c.commitImage) {
			return img.Labels[consts.LabelConfigDigest], nil
		}
	}
	return "", nil
}

// IsStale reports whether the commit image was built from a different
// configuration than the current one.
func (c *Container) IsStale(ctx context.Context) (bool, error) {
	if c.spec.ConfigDigest == "" {
		return false, nil
	}
	built, err := c.CommitDigest(ctx)
	if err != nil {
		return false, err
	}
	return built != "" && built != c.spec.ConfigDigest.String(), nil
}

func (c *Container) removeCommitImage(ctx context.Context) error {
	err := c.client.RemoveImage(ctx, c.commitImage)
	c.metrics.ObserveEngineOp("image_remove", err)
	c.hasCommit = nil
	if err != nil && !errors.Is(err, ctr.ErrImageNotFound) {
		return err
	}
	return nil
}
