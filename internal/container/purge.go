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

	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/hashicorp/go-multierror"
)

// PurgeReport lists the engine objects a purge removed, or would remove.
type PurgeReport struct {
	DryRun     bool     `json:"dryRun"               yaml:"dryRun"`
	Containers []string `json:"containers,omitempty" yaml:"containers,omitempty"`
	Images     []string `json:"images,omitempty"     yaml:"images,omitempty"`
	Volumes    []string `json:"volumes,omitempty"    yaml:"volumes,omitempty"`
	Networks   []string `json:"networks,omitempty"   yaml:"networks,omitempty"`
}

// Merge appends other into r, skipping duplicates.
func (r *PurgeReport) Merge(other PurgeReport) {
	r.Containers = appendUnique(r.Containers, other.Containers...)
	r.Images = appendUnique(r.Images, other.Images...)
	r.Volumes = appendUnique(r.Volumes, other.Volumes...)
	r.Networks = appendUnique(r.Networks, other.Networks...)
}

// Empty reports whether nothing was (or would be) removed.
func (r PurgeReport) Empty() bool {
	return len(r.Containers)+len(r.Images)+len(r.Volumes)+len(r.Networks) == 0
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

// Purge removes the container, its commit image and its declared volumes.
// With dryRun nothing is mutated.
func (c *Container) Purge(ctx context.Context, dryRun bool) (PurgeReport, error) {
	report := PurgeReport{DryRun: dryRun}

	exists, err := c.Exists(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %w", errdefs.ErrPurge, c.containerName, err)
	}
	if exists {
		report.Containers = append(report.Containers, c.containerName)
		if !dryRun {
			if err = c.Stop(ctx); err != nil {
				return report, fmt.Errorf("%w: %w", errdefs.ErrPurge, err)
			}
		}
	}

	var result *multierror.Error

	hasCommit, err := c.HasCommitImage(ctx)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if hasCommit {
		report.Images = append(report.Images, c.commitImage)
		if !dryRun {
			if err = c.removeCommitImage(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("remove image %s: %w", c.commitImage, err))
			}
		}
	}

	for _, volume := range c.volumeNames() {
		name := c.VolumeName(volume)
		if _, err = c.client.InspectVolume(ctx, name); err != nil {
			if !errors.Is(err, ctr.ErrVolumeNotFound) {
				result = multierror.Append(result, err)
			}
			continue
		}
		report.Volumes = append(report.Volumes, name)
		if dryRun {
			continue
		}
		err = c.client.RemoveVolume(ctx, name)
		c.metrics.ObserveEngineOp("volume_remove", err)
		if err != nil && !errors.Is(err, ctr.ErrVolumeNotFound) {
			result = multierror.Append(result, fmt.Errorf("remove volume %s: %w", name, err))
		}
	}

	if err = result.ErrorOrNil(); err != nil {
		return report, fmt.Errorf("%w: %s: %w", errdefs.ErrPurge, c.containerName, err)
	}
	return report, nil
}
