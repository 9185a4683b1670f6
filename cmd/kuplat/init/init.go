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

package init

import (
	"fmt"
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type initController interface {
	Init(config map[string]string) (controller.InitReport, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Initialize the project identity",
		Long:         "Create the project identity file, or update its configuration when it already exists.",
		Args:         cobra.NoArgs,
		RunE:         runInit,
		SilenceUsage: true,
	}

	cmd.Flags().StringSlice("config", nil, "Project configuration entries as key=value")
	_ = viper.BindPFlag(config.KUPLAT_INIT_CONFIG.ViperKey, cmd.Flags().Lookup("config"))

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	entries, err := parseConfig(config.SplitList(viper.GetStringSlice(config.KUPLAT_INIT_CONFIG.ViperKey)))
	if err != nil {
		return err
	}

	ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) initController {
		return e
	})
	if err != nil {
		return err
	}
	defer shared.Release(cmd, ctrl)

	report, err := ctrl.Init(entries)
	if err != nil {
		return err
	}

	if report.Created {
		cmd.Println("Initialized project")
	} else {
		cmd.Println("Project already initialized")
	}
	cmd.Println(fmt.Sprintf("UID: %s", report.UID))
	cmd.Println(fmt.Sprintf("Short UID: %s", report.ShortUID))
	cmd.Println(fmt.Sprintf("Path: %s", report.Path))
	return nil
}

func parseConfig(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: config entry %q is not key=value", errdefs.ErrConfig, entry)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
