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

package controller

import (
	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/project"
	"github.com/eminwux/kuplat/internal/router"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
)

func (b *Exec) projectDoc(p *project.Project) (*v1beta1.ProjectDoc, error) {
	st, err := p.Status(b.ctx)
	if err != nil {
		return nil, err
	}
	return projectDocFromStatus(st, p.Domains()), nil
}

func projectDocFromStatus(st project.Status, domains []string) *v1beta1.ProjectDoc {
	doc := v1beta1.NewProjectDoc(&v1beta1.ProjectDoc{
		Metadata: v1beta1.ProjectMetadata{Name: st.ShortUID, UID: st.UID},
		Spec: v1beta1.ProjectSpec{
			Path:      st.Path,
			Network:   st.Network,
			Domains:   domains,
			Hostnames: st.Hostnames,
		},
		Status: v1beta1.ProjectStatus{Routed: st.Routed, Total: len(st.Containers)},
	})
	for _, cs := range st.Containers {
		cd := containerDoc(st.UID, cs)
		if cd.Status.State == v1beta1.ContainerStateRunning {
			doc.Status.Running++
		}
		doc.Status.Containers = append(doc.Status.Containers, cd)
	}
	return doc
}

func containerDoc(projectUID string, cs project.ContainerStatus) v1beta1.ContainerDoc {
	return v1beta1.ContainerDoc{
		APIVersion: v1beta1.APIVersionV1Beta1,
		Kind:       v1beta1.KindContainer,
		Metadata: v1beta1.ContainerMetadata{
			Name: cs.Name,
			Labels: map[string]string{
				consts.LabelProjectUID: projectUID,
				consts.LabelKind:       cs.Kind,
			},
		},
		Spec: v1beta1.ContainerSpec{
			ContainerName: cs.ContainerName,
			ProjectUID:    projectUID,
			Role:          cs.Kind,
			Type:          cs.Type,
		},
		Status: v1beta1.ContainerStatus{
			State:       v1beta1.ParseContainerState(cs.State),
			Image:       cs.Image,
			Provisioned: cs.Provisioned,
			Stale:       cs.Stale,
		},
	}
}

func routerDoc(st router.Status, exists bool, opts router.Options) *v1beta1.RouterDoc {
	state := v1beta1.ContainerStateAbsent
	switch {
	case st.Running:
		state = v1beta1.ContainerStateRunning
	case exists:
		state = v1beta1.ContainerStateStopped
	}
	return &v1beta1.RouterDoc{
		APIVersion: v1beta1.APIVersionV1Beta1,
		Kind:       v1beta1.KindRouter,
		Metadata:   v1beta1.RouterMetadata{Name: st.Container},
		Spec: v1beta1.RouterSpec{
			Image:     opts.Image,
			HTTPPort:  opts.HTTPPort,
			HTTPSPort: opts.HTTPSPort,
		},
		Status: v1beta1.RouterStatus{
			State:    state,
			Projects: st.Projects,
			Networks: st.Networks,
		},
	}
}

func purgeDoc(project string, report container.PurgeReport) *v1beta1.PurgeDoc {
	return &v1beta1.PurgeDoc{
		APIVersion: v1beta1.APIVersionV1Beta1,
		Kind:       v1beta1.KindPurge,
		Project:    project,
		DryRun:     report.DryRun,
		Containers: report.Containers,
		Images:     report.Images,
		Volumes:    report.Volumes,
		Networks:   report.Networks,
	}
}
