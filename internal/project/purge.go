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

package project

import (
	"context"
	"fmt"
	"slices"

	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/hashicorp/go-multierror"
)

// Purge removes every engine object of the project: containers, commit
// images, volumes, leftovers carrying the project labels, the router
// registration and the network. With dryRun nothing is mutated and the
// report lists what would go.
func (p *Project) Purge(ctx context.Context, dryRun bool) (container.PurgeReport, error) {
	var report container.PurgeReport
	err := p.withLock(func() error {
		var err error
		report, err = p.purge(ctx, dryRun)
		return err
	})
	return report, err
}

func (p *Project) purge(ctx context.Context, dryRun bool) (container.PurgeReport, error) {
	report := container.PurgeReport{DryRun: dryRun}
	var result *multierror.Error

	for _, c := range p.stopOrder() {
		r, err := c.Purge(ctx, dryRun)
		report.Merge(r)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := p.purgeLeftovers(ctx, dryRun, &report); err != nil {
		result = multierror.Append(result, err)
	}

	if !dryRun {
		if err := p.Unregister(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	network := p.NetworkName()
	if _, err := p.client.InspectNetwork(ctx, network); err == nil {
		report.Networks = append(report.Networks, network)
		if !dryRun {
			err = p.client.RemoveNetwork(ctx, network)
			p.metrics.ObserveEngineOp("network_remove", err)
			if err != nil && !isNotFound(err) {
				result = multierror.Append(result, fmt.Errorf("remove network %s: %w", network, err))
			}
		}
	} else if !isNotFound(err) {
		result = multierror.Append(result, fmt.Errorf("inspect network %s: %w", network, err))
	}

	if err := result.ErrorOrNil(); err != nil {
		return report, fmt.Errorf("%w: project %s: %w", errdefs.ErrPurge, p.ShortUID(), err)
	}
	p.logger.InfoContext(ctx, "project purged", "dry_run", dryRun,
		"containers", len(report.Containers), "images", len(report.Images),
		"volumes", len(report.Volumes), "networks", len(report.Networks))
	return report, nil
}

// purgeLeftovers sweeps objects labelled with the project uid that no
// current container declares, such as volumes of removed mounts or
// containers of services deleted from the configuration.
func (p *Project) purgeLeftovers(ctx context.Context, dryRun bool, report *container.PurgeReport) error {
	filter := naming.ProjectFilter(p.identity.UID)
	var result *multierror.Error

	infos, err := p.client.ListContainers(ctx, filter)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("list containers: %w", err))
	}
	for _, info := range infos {
		if slices.Contains(report.Containers, info.Name) {
			continue
		}
		report.Containers = append(report.Containers, info.Name)
		if dryRun {
			continue
		}
		if info.Running {
			if err = p.client.StopContainer(ctx, info.Name, ctr.StopOptions{}); err != nil && !isNotFound(err) {
				result = multierror.Append(result, fmt.Errorf("stop %s: %w", info.Name, err))
				continue
			}
		}
		err = p.client.RemoveContainer(ctx, info.Name)
		p.metrics.ObserveEngineOp("remove", err)
		if err != nil && !isNotFound(err) {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", info.Name, err))
		}
	}

	images, err := p.client.ListImages(ctx, filter)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("list images: %w", err))
	}
	for _, img := range images {
		ref := img.ID
		if len(img.Tags) > 0 {
			ref = img.Tags[0]
		}
		if slices.Contains(report.Images, ref) {
			continue
		}
		report.Images = append(report.Images, ref)
		if dryRun {
			continue
		}
		err = p.client.RemoveImage(ctx, ref)
		p.metrics.ObserveEngineOp("image_remove", err)
		if err != nil && !isNotFound(err) {
			result = multierror.Append(result, fmt.Errorf("remove image %s: %w", ref, err))
		}
	}

	volumes, err := p.client.ListVolumes(ctx, filter)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("list volumes: %w", err))
	}
	for _, v := range volumes {
		if slices.Contains(report.Volumes, v.Name) {
			continue
		}
		report.Volumes = append(report.Volumes, v.Name)
		if dryRun {
			continue
		}
		err = p.client.RemoveVolume(ctx, v.Name)
		p.metrics.ObserveEngineOp("volume_remove", err)
		if err != nil && !isNotFound(err) {
			result = multierror.Append(result, fmt.Errorf("remove volume %s: %w", v.Name, err))
		}
	}
	return result.ErrorOrNil()
}
