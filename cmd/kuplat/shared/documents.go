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

package shared

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/router"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
	"github.com/spf13/cobra"
)

// PrintProject prints a project document in the requested format.
func PrintProject(cmd *cobra.Command, format OutputFormat, doc *v1beta1.ProjectDoc) error {
	if handled, err := PrintDocument(cmd, format, doc); handled {
		return err
	}

	routed := "no"
	if doc.Status.Routed {
		routed = "yes"
	}
	cmd.Printf("Project %s (%s)\n", doc.Metadata.Name, doc.Metadata.UID)
	if doc.Spec.Path != "" {
		cmd.Printf("Path: %s\n", doc.Spec.Path)
	}
	cmd.Printf("Network: %s\n", doc.Spec.Network)
	cmd.Printf("Routed: %s\n", routed)
	if len(doc.Spec.Hostnames) > 0 {
		cmd.Printf("Hostnames: %s\n", strings.Join(doc.Spec.Hostnames, ", "))
	}
	cmd.Println()

	rows := make([][]string, 0, len(doc.Status.Containers))
	for _, c := range doc.Status.Containers {
		build := "-"
		if c.Spec.Role == consts.KindApplication {
			build = "current"
			switch {
			case !c.Status.Provisioned:
				build = "none"
			case c.Status.Stale:
				build = "stale"
			}
		}
		rows = append(rows, []string{
			c.Metadata.Name,
			c.Spec.Role,
			c.Spec.Type,
			c.Status.State.String(),
			build,
			c.Spec.ContainerName,
		})
	}
	PrintTable(cmd, []string{"NAME", "ROLE", "TYPE", "STATE", "BUILD", "CONTAINER"}, rows)
	return nil
}

// PrintPurge prints a purge report in the requested format.
func PrintPurge(cmd *cobra.Command, format OutputFormat, doc *v1beta1.PurgeDoc) error {
	if handled, err := PrintDocument(cmd, format, doc); handled {
		return err
	}
	verb := "Removed"
	if doc.DryRun {
		verb = "Would remove"
	}
	groups := []struct {
		label string
		names []string
	}{
		{"container", doc.Containers},
		{"image", doc.Images},
		{"volume", doc.Volumes},
		{"network", doc.Networks},
	}
	total := 0
	for _, g := range groups {
		for _, name := range g.names {
			cmd.Printf("%s %s %s\n", verb, g.label, name)
			total++
		}
	}
	if total == 0 {
		cmd.Println("Nothing to purge")
		return nil
	}
	cmd.Printf("%s %d objects\n", verb, total)
	return nil
}

// PrintRouter prints the router document in the requested format.
func PrintRouter(cmd *cobra.Command, format OutputFormat, doc *v1beta1.RouterDoc) error {
	if handled, err := PrintDocument(cmd, format, doc); handled {
		return err
	}
	projects := "-"
	if len(doc.Status.Projects) > 0 {
		projects = strings.Join(doc.Status.Projects, ",")
	}
	PrintTable(cmd, []string{"NAME", "IMAGE", "STATE", "HTTP", "HTTPS", "PROJECTS"}, [][]string{{
		doc.Metadata.Name,
		doc.Spec.Image,
		doc.Status.State.String(),
		strconv.Itoa(doc.Spec.HTTPPort),
		strconv.Itoa(doc.Spec.HTTPSPort),
		projects,
	}})
	return nil
}

// PrintOmissions reports the routes the router configuration left out on
// the error stream.
func PrintOmissions(cmd *cobra.Command, omissions []router.Omission) {
	for _, o := range omissions {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: route omitted: %s\n", o)
	}
}
