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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatYAML  OutputFormat = "yaml"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// AddOutputFlag registers -o/--output and binds it to viperKey.
func AddOutputFlag(cmd *cobra.Command, viperKey string) {
	cmd.Flags().StringP("output", "o", "", "Output format (yaml, json, table)")
	_ = viper.BindPFlag(viperKey, cmd.Flags().Lookup("output"))
}

// ParseOutputFormat validates the output format bound to viperKey. Empty
// means table.
func ParseOutputFormat(viperKey string) (OutputFormat, error) {
	output := strings.ToLower(strings.TrimSpace(viper.GetString(viperKey)))
	if output == "" {
		return OutputFormatTable, nil
	}

	format := OutputFormat(output)
	switch format {
	case OutputFormatYAML, OutputFormatJSON, OutputFormatTable:
		return format, nil
	default:
		return OutputFormatTable, fmt.Errorf("invalid output format: %s (supported: yaml, json, table)", output)
	}
}

// PrintYAML prints the resource as YAML.
func PrintYAML(cmd *cobra.Command, doc any) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(doc)
}

// PrintJSON prints the resource as JSON.
func PrintJSON(cmd *cobra.Command, doc any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// PrintDocument prints doc as YAML or JSON. Table output is left to the
// caller and reported as not handled.
func PrintDocument(cmd *cobra.Command, format OutputFormat, doc any) (bool, error) {
	switch format {
	case OutputFormatYAML:
		return true, PrintYAML(cmd, doc)
	case OutputFormatJSON:
		return true, PrintJSON(cmd, doc)
	default:
		return false, nil
	}
}

// PrintTable prints rows under headers with aligned columns.
func PrintTable(cmd *cobra.Command, headers []string, rows [][]string) {
	if len(rows) == 0 {
		cmd.Println("No resources found.")
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		var sb strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(cells)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
		}
		cmd.Println(sb.String())
	}

	printRow(headers)
	separators := make([]string, len(widths))
	for i, w := range widths {
		separators[i] = strings.Repeat("-", w)
	}
	printRow(separators)
	for _, row := range rows {
		printRow(row)
	}
}
