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
	"log/slog"
	"strings"
	"sync"

	"github.com/containerd/platforms"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Client is the capability set the orchestration layer needs from the
// container engine. Every label argument is an exact-match selector.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	InspectContainer(ctx context.Context, name string) (ContainerInfo, error)
	ListContainers(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, name string) error
	StopContainer(ctx context.Context, name string, opts StopOptions) error
	WaitContainer(ctx context.Context, name string) (int64, error)
	RemoveContainer(ctx context.Context, name string) error
	KillContainer(ctx context.Context, name, signal string) error
	CommitContainer(ctx context.Context, name string, opts CommitOptions) (string, error)
	Exec(ctx context.Context, name string, spec ExecSpec) (ExecResult, error)
	ExecInteractive(ctx context.Context, name string, spec ExecSpec, streams Streams) (int, error)
	CopyToContainer(ctx context.Context, name, dir string, content io.Reader) error

	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	RemoveImage(ctx context.Context, ref string) error
	ListImages(ctx context.Context, labels map[string]string) ([]ImageInfo, error)

	CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error)
	InspectNetwork(ctx context.Context, name string) (NetworkInfo, error)
	ListNetworks(ctx context.Context, labels map[string]string) ([]NetworkInfo, error)
	RemoveNetwork(ctx context.Context, name string) error
	ConnectNetwork(ctx context.Context, network, container string, aliases []string) error
	DisconnectNetwork(ctx context.Context, network, container string) error

	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	InspectVolume(ctx context.Context, name string) (VolumeInfo, error)
	ListVolumes(ctx context.Context, labels map[string]string) ([]VolumeInfo, error)
	RemoveVolume(ctx context.Context, name string) error
}

// Options configures the Docker-backed client.
type Options struct {
	// Host overrides DOCKER_HOST when set.
	Host string
	// Platform is an OCI platform specifier ("linux/amd64"). Empty means the
	// engine's native platform.
	Platform string
	// Registries supplies credentials for authenticated pulls.
	Registries []RegistryCredentials
}

type dockerClient struct {
	logger   *slog.Logger
	opts     Options
	cli      *client.Client
	platform *ocispec.Platform

	networksMu sync.RWMutex
	networks   map[string]string
}

// NewClient returns a Client talking to the Docker engine. Connect must be
// called before use.
func NewClient(logger *slog.Logger, opts Options) Client {
	return &dockerClient{
		logger:   logger,
		opts:     opts,
		networks: make(map[string]string),
	}
}

func (c *dockerClient) Connect(ctx context.Context) error {
	if c.cli != nil {
		c.logger.DebugContext(ctx, "docker client already connected, reusing connection")
		return nil
	}

	if p := strings.TrimSpace(c.opts.Platform); p != "" {
		spec, err := platforms.Parse(p)
		if err != nil {
			return fmt.Errorf("invalid platform %q: %w", p, err)
		}
		spec = platforms.Normalize(spec)
		c.platform = &spec
	}

	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if c.opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(c.opts.Host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create docker client", "error", err)
		return fmt.Errorf("create docker client: %w", err)
	}
	c.cli = cli
	c.logger.DebugContext(ctx, "connected to docker", "host", cli.DaemonHost())
	return nil
}

func (c *dockerClient) Close() error {
	if c.cli == nil {
		return nil
	}
	err := c.cli.Close()
	c.cli = nil
	return err
}

func (c *dockerClient) Ping(ctx context.Context) error {
	if c.cli == nil {
		return ErrNotConnected
	}
	ping, err := c.cli.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

func (c *dockerClient) platformString() string {
	if c.platform == nil {
		return ""
	}
	return platforms.Format(*c.platform)
}
