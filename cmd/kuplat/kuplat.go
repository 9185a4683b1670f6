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

package kuplat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/kuplat/cmd/config"
	autocompletecmd "github.com/eminwux/kuplat/cmd/kuplat/autocomplete"
	buildcmd "github.com/eminwux/kuplat/cmd/kuplat/build"
	deploycmd "github.com/eminwux/kuplat/cmd/kuplat/deploy"
	initcmd "github.com/eminwux/kuplat/cmd/kuplat/init"
	listcmd "github.com/eminwux/kuplat/cmd/kuplat/list"
	purgecmd "github.com/eminwux/kuplat/cmd/kuplat/purge"
	relationshipscmd "github.com/eminwux/kuplat/cmd/kuplat/relationships"
	restartcmd "github.com/eminwux/kuplat/cmd/kuplat/restart"
	routercmd "github.com/eminwux/kuplat/cmd/kuplat/router"
	routescmd "github.com/eminwux/kuplat/cmd/kuplat/routes"
	shellcmd "github.com/eminwux/kuplat/cmd/kuplat/shell"
	startcmd "github.com/eminwux/kuplat/cmd/kuplat/start"
	statuscmd "github.com/eminwux/kuplat/cmd/kuplat/status"
	stopcmd "github.com/eminwux/kuplat/cmd/kuplat/stop"
	variablecmd "github.com/eminwux/kuplat/cmd/kuplat/variable"
	"github.com/eminwux/kuplat/cmd/kuplat/version"
	"github.com/eminwux/kuplat/cmd/types"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ConfigLoader interface {
	LoadConfig() error
}

// MockConfigLoaderKey is used to inject mock config loaders in tests via context.
type MockConfigLoaderKey struct{}

func NewKuplatCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "kuplat",
		Short: "Kuplat runs platform projects on the local Docker engine",
		Long: "Kuplat provisions the applications and services of a project as containers " +
			"on the local Docker engine and routes HTTP traffic to them through a shared router.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var logger *slog.Logger
			if viper.GetBool(config.KUPLAT_ROOT_VERBOSE.ViperKey) {
				logLevel := viper.GetString(config.KUPLAT_ROOT_LOG_LEVEL.ViperKey)
				if logLevel == "" {
					logLevel = "info"
				}

				levelVar := new(slog.LevelVar)
				levelVar.Set(logging.ParseLevel(logLevel))

				textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
				handler := &logging.ReformatHandler{Inner: textHandler, Writer: os.Stdout}
				logger = slog.New(handler)

				ctx := cmd.Context()
				ctx = context.WithValue(ctx, types.CtxLogger, logger)
				ctx = context.WithValue(ctx, types.CtxLevelVar, &levelVar)
				ctx = context.WithValue(ctx, types.CtxHandler, handler)
				cmd.SetContext(ctx)
				logger.DebugContext(cmd.Context(), "enabling verbose", "log-level", logLevel)
			}

			var loader ConfigLoader
			if mockLoader, ok := cmd.Context().Value(MockConfigLoaderKey{}).(ConfigLoader); ok {
				loader = mockLoader
			} else {
				loader = &realConfigLoader{}
			}

			if err := loader.LoadConfig(); err != nil {
				if logger != nil {
					logger.DebugContext(cmd.Context(), "config error", "error", err)
				}
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	if err := SetupKuplatCmd(cmd); err != nil {
		return nil, fmt.Errorf("failed to setup kuplat command: %w", err)
	}

	return cmd, nil
}

func SetupKuplatCmd(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(initcmd.NewInitCmd())
	rootCmd.AddCommand(startcmd.NewStartCmd())
	rootCmd.AddCommand(stopcmd.NewStopCmd())
	rootCmd.AddCommand(restartcmd.NewRestartCmd())
	rootCmd.AddCommand(buildcmd.NewBuildCmd())
	rootCmd.AddCommand(deploycmd.NewDeployCmd())
	rootCmd.AddCommand(statuscmd.NewStatusCmd())
	rootCmd.AddCommand(listcmd.NewListCmd())
	rootCmd.AddCommand(purgecmd.NewPurgeCmd())
	rootCmd.AddCommand(shellcmd.NewShellCmd())
	rootCmd.AddCommand(variablecmd.NewVariableCmd())
	rootCmd.AddCommand(routescmd.NewRoutesCmd())
	rootCmd.AddCommand(relationshipscmd.NewRelationshipsCmd())
	rootCmd.AddCommand(routercmd.NewRouterCmd())
	rootCmd.AddCommand(autocompletecmd.NewAutocompleteCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	if err := SetPersistentLoggingFlags(rootCmd); err != nil {
		return err
	}
	return SetPersistentEngineFlags(rootCmd)
}

func SetPersistentLoggingFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().String("config", "", "config file (default is $XDG_CONFIG_HOME/kuplat/config.yaml)")
	if err := viper.BindPFlag(config.KUPLAT_ROOT_CONFIG_FILE.ViperKey, rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return err
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	if err := viper.BindPFlag(config.KUPLAT_ROOT_VERBOSE.ViperKey, rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		return err
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	if err := viper.BindPFlag(config.KUPLAT_ROOT_LOG_LEVEL.ViperKey, rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		return err
	}

	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write run metrics to this file in text exposition format")
	return viper.BindPFlag(config.KUPLAT_ROOT_METRICS_TEXTFILE.ViperKey, rootCmd.PersistentFlags().Lookup("metrics-textfile"))
}

func SetPersistentEngineFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.StringP("project", "p", "", "Project directory (default is the working directory)")
	flags.StringSlice("domains", nil, "Domains appended to the default route hostnames")
	flags.String("docker-host", "", "Docker engine address (default from DOCKER_HOST)")
	flags.String("platform", "", "Image platform, for example linux/amd64")
	flags.String("lock-dir", "", "Directory holding the project lock files")
	flags.String("router-image", config.KUPLAT_ROUTER_IMAGE.Default, "Router image")
	flags.Int("router-http-port", 80, "Host port published for HTTP")
	flags.Int("router-https-port", 443, "Host port published for HTTPS")
	flags.Duration("readiness-timeout", 0, "How long services may take to become ready (default 2m)")
	flags.Duration("readiness-interval", 0, "Initial interval between readiness probes (default 1s)")

	bindings := []struct {
		flag string
		v    config.Var
	}{
		{"project", config.KUPLAT_ROOT_PROJECT},
		{"domains", config.KUPLAT_ROOT_DOMAINS},
		{"docker-host", config.KUPLAT_ROOT_DOCKER_HOST},
		{"platform", config.KUPLAT_ROOT_PLATFORM},
		{"lock-dir", config.KUPLAT_ROOT_LOCK_DIR},
		{"router-image", config.KUPLAT_ROUTER_IMAGE},
		{"router-http-port", config.KUPLAT_ROUTER_HTTP_PORT},
		{"router-https-port", config.KUPLAT_ROUTER_HTTPS_PORT},
		{"readiness-timeout", config.KUPLAT_ROOT_READINESS_TIMEOUT},
		{"readiness-interval", config.KUPLAT_ROOT_READINESS_INTERVAL},
	}
	for _, b := range bindings {
		if err := viper.BindPFlag(b.v.ViperKey, flags.Lookup(b.flag)); err != nil {
			return err
		}
	}
	return nil
}

type realConfigLoader struct{}

func (r *realConfigLoader) LoadConfig() error {
	return loadConfig()
}

func loadConfig() error {
	configFile := viper.GetString(config.KUPLAT_ROOT_CONFIG_FILE.ViperKey)
	if configFile == "" {
		_ = config.KUPLAT_ROOT_CONFIG_FILE.BindEnv()
		configFile = viper.GetString(config.KUPLAT_ROOT_CONFIG_FILE.ViperKey)
	}
	if configFile == "" {
		configFile = config.DefaultConfigFile()
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Dir(configFile))
	} else {
		viper.SetConfigFile(configFile)
	}

	for _, v := range config.EnvVars() {
		_ = v.BindEnv()
	}

	if viper.GetString(config.KUPLAT_ROOT_LOG_LEVEL.ViperKey) == "" {
		viper.Set(config.KUPLAT_ROOT_LOG_LEVEL.ViperKey, "info")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, flags and environment still apply.
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
		}
	}

	return nil
}

// LoadConfig is a public wrapper for backward compatibility.
func LoadConfig() error {
	return loadConfig()
}
