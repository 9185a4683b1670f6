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

package router

import (
	"strings"

	"github.com/eminwux/kuplat/cmd/config"
	"github.com/eminwux/kuplat/cmd/kuplat/shared"
	"github.com/eminwux/kuplat/internal/controller"
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type routerController interface {
	RouterStart() (*v1beta1.RouterDoc, error)
	RouterStop() error
	RouterStatus() (*v1beta1.RouterDoc, error)
	RouterPurge(dryRun bool) (*v1beta1.PurgeDoc, error)
	RouterRemove(ref string) error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRouterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Manage the shared router",
		Long:  "Manage the single router container that serves the HTTP traffic of every project.",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newPurgeCmd())
	return cmd
}

func controllerFor(cmd *cobra.Command) (routerController, error) {
	return shared.GetControllerWithMock(cmd, MockControllerKey{}, func(e *controller.Exec) routerController {
		return e
	})
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "start",
		Short:        "Start the router, creating it when absent",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_ROUTER_START_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			doc, err := ctrl.RouterStart()
			if err != nil {
				return err
			}
			return shared.PrintRouter(cmd, format, doc)
		},
	}
	shared.AddOutputFlag(cmd, config.KUPLAT_ROUTER_START_OUTPUT.ViperKey)
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "stop",
		Short:        "Stop the router",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			if err = ctrl.RouterStop(); err != nil {
				return err
			}
			cmd.Println("Stopped router")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show the router state and registered projects",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_ROUTER_STATUS_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			doc, err := ctrl.RouterStatus()
			if err != nil {
				return err
			}
			return shared.PrintRouter(cmd, format, doc)
		},
	}
	shared.AddOutputFlag(cmd, config.KUPLAT_ROUTER_STATUS_OUTPUT.ViperKey)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "remove [project]",
		Aliases:      []string{"rm"},
		Short:        "Deregister a project from the router",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 1 {
				ref = strings.TrimSpace(args[0])
			}
			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			if err = ctrl.RouterRemove(ref); err != nil {
				return err
			}
			cmd.Println("Removed project from router")
			return nil
		},
	}
	cmd.ValidArgsFunction = config.CompleteProjectRefs
	return cmd
}

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "purge",
		Short:        "Remove the router container and its volumes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(config.KUPLAT_ROUTER_PURGE_OUTPUT.ViperKey)
			if err != nil {
				return err
			}
			dryRun := viper.GetBool(config.KUPLAT_ROUTER_PURGE_DRY_RUN.ViperKey)

			ctrl, err := controllerFor(cmd)
			if err != nil {
				return err
			}
			defer shared.Release(cmd, ctrl)

			doc, err := ctrl.RouterPurge(dryRun)
			if doc != nil {
				if printErr := shared.PrintPurge(cmd, format, doc); printErr != nil && err == nil {
					err = printErr
				}
			}
			return err
		},
	}
	shared.AddOutputFlag(cmd, config.KUPLAT_ROUTER_PURGE_OUTPUT.ViperKey)
	cmd.Flags().Bool("dry-run", false, "Report what would be removed without removing it")
	_ = viper.BindPFlag(config.KUPLAT_ROUTER_PURGE_DRY_RUN.ViperKey, cmd.Flags().Lookup("dry-run"))
	return cmd
}
