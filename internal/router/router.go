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

// Package router manages the shared nginx container that proxies inbound
// HTTP(S) into every registered project, and compiles each project's routes
// into nginx configuration.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/lock"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/naming"
)

const (
	routerName     = "router"
	defaultConf    = "default.conf"
	confVolume     = "conf"
	certVolume     = "certs"
	routerLockFile = "router.lock"
	cleanupSuffix  = "_cleanup"
)

// Options configures the router container.
type Options struct {
	Image     string
	HTTPPort  int
	HTTPSPort int
	// LockPath is the advisory lock guarding router updates.
	LockPath string
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Image:     "docker.io/library/nginx:1.27-alpine",
		HTTPPort:  80,
		HTTPSPort: 443,
		LockPath:  filepath.Join(lock.RuntimeDir(), routerLockFile),
	}
}

// Registration is one project's contribution to the router.
type Registration struct {
	ShortUID string
	Network  string
	Config   []byte
}

// Status describes the router for display.
type Status struct {
	Running   bool     `json:"running"            yaml:"running"`
	Container string   `json:"container"          yaml:"container"`
	Image     string   `json:"image,omitempty"    yaml:"image,omitempty"`
	Projects  []string `json:"projects,omitempty" yaml:"projects,omitempty"`
	Networks  []string `json:"networks,omitempty" yaml:"networks,omitempty"`
}

// Router is the shared reverse proxy container.
type Router struct {
	*container.Container

	opts    Options
	metrics *metrics.Metrics
}

// New builds the router. It does not touch the engine.
func New(logger *slog.Logger, client ctr.Client, m *metrics.Metrics, opts Options) (*Router, error) {
	def := DefaultOptions()
	if opts.Image == "" {
		opts.Image = def.Image
	}
	if opts.HTTPPort == 0 {
		opts.HTTPPort = def.HTTPPort
	}
	if opts.HTTPSPort == 0 {
		opts.HTTPSPort = def.HTTPSPort
	}
	if opts.LockPath == "" {
		opts.LockPath = def.LockPath
	}

	c, err := container.New(logger, client, m, container.Spec{
		Name:          routerName,
		Kind:          consts.KindRouter,
		ContainerName: consts.RouterContainerName,
		Standalone:    true,
		DisableCommit: true,
		BaseImage:     opts.Image,
		Volumes: map[string]string{
			confVolume: consts.RouterConfigDir,
			certVolume: consts.RouterCertDir,
		},
		Ports: []ctr.PortBinding{
			{ContainerPort: 80, HostPort: opts.HTTPPort},
			{ContainerPort: 443, HostPort: opts.HTTPSPort},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Router{Container: c, opts: opts, metrics: m}, nil
}

// Lock takes the router's advisory lock.
func (r *Router) Lock() (*lock.Lock, error) {
	return lock.Acquire(r.opts.LockPath)
}

// Options returns the settings the router was built with.
func (r *Router) Options() Options { return r.opts }

// Shutdown stops and removes the router container under the router lock.
// Registered configurations survive in the conf volume.
func (r *Router) Shutdown(ctx context.Context) error {
	l, err := r.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return r.Stop(ctx)
}

// Remove purges the router container, its TLS material and every
// registered configuration.
func (r *Router) Remove(ctx context.Context, dryRun bool) (container.PurgeReport, error) {
	l, err := r.Lock()
	if err != nil {
		return container.PurgeReport{DryRun: dryRun}, err
	}
	defer func() { _ = l.Release() }()
	return r.Purge(ctx, dryRun)
}

func configPath(shortUID string) string {
	return path.Join(consts.RouterConfigDir, shortUID+".conf")
}

// EnsureRunning starts the router when needed. A new container gets its TLS
// material and rejoins every registered project network.
func (r *Router) EnsureRunning(ctx context.Context) error {
	created, err := r.Start(ctx)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err = r.ensureCertificate(ctx); err != nil {
		return err
	}
	return r.reconnect(ctx)
}

func (r *Router) ensureCertificate(ctx context.Context) error {
	certPath := path.Join(consts.RouterCertDir, certFile)
	if _, err := r.RunCommand(ctx, "test -s "+certPath, ""); err == nil {
		return nil
	}
	cert, key, err := selfSignedCertificate(time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrRouterConfig, err)
	}
	if err = r.UploadFile(ctx, cert, certPath, 0o644); err != nil {
		return err
	}
	if err = r.UploadFile(ctx, key, path.Join(consts.RouterCertDir, keyFile), 0o600); err != nil {
		return err
	}
	r.Logger().InfoContext(ctx, "installed self-signed router certificate")
	_, err = r.RunCommand(ctx, "nginx -s reload", "")
	return err
}

// Registered lists the short uids of projects with a configuration file.
func (r *Router) Registered(ctx context.Context) ([]string, error) {
	out, err := r.RunCommand(ctx, "ls -1 "+consts.RouterConfigDir, "")
	if err != nil {
		return nil, err
	}
	var shorts []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || name == defaultConf || !strings.HasSuffix(name, ".conf") {
			continue
		}
		shorts = append(shorts, strings.TrimSuffix(name, ".conf"))
	}
	sort.Strings(shorts)
	return shorts, nil
}

// reconnect joins the network of every registered project. Configurations
// whose network is gone belong to purged projects and are removed.
func (r *Router) reconnect(ctx context.Context) error {
	shorts, err := r.Registered(ctx)
	if err != nil {
		return err
	}
	for _, short := range shorts {
		network, err := naming.BuildNetworkName(short)
		if err != nil {
			continue
		}
		err = r.Client().ConnectNetwork(ctx, network, r.ContainerName(), nil)
		switch {
		case err == nil, errors.Is(err, ctr.ErrAlreadyExists):
		case errors.Is(err, ctr.ErrNetworkNotFound):
			r.Logger().WarnContext(ctx, "removing configuration of a vanished project", "project", short)
			if _, err = r.RunCommand(ctx, "rm -f "+configPath(short), ""); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: connect %s: %w", errdefs.ErrRouterConfig, network, err)
		}
	}
	return nil
}

// Reload restarts the router, the only way configuration is applied.
func (r *Router) Reload(ctx context.Context) error {
	if err := r.Restart(ctx); err != nil {
		return err
	}
	r.metrics.ObserveRouterReload()
	return r.reconnect(ctx)
}

// Register uploads a project's configuration, validates it, joins the
// project network and restarts the router.
func (r *Router) Register(ctx context.Context, reg Registration) error {
	l, err := r.Lock()
	if err != nil {
		return err
	}
	defer l.Release()

	if err = r.EnsureRunning(ctx); err != nil {
		return err
	}
	dst := configPath(reg.ShortUID)
	if err := r.UploadFile(ctx, reg.Config, dst, 0o644); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrRouterConfig, err)
	}
	if _, err := r.RunCommand(ctx, "nginx -t -q", ""); err != nil {
		if _, rmErr := r.RunCommand(ctx, "rm -f "+dst, ""); rmErr != nil {
			r.Logger().ErrorContext(ctx, "failed to remove rejected configuration", "project", reg.ShortUID, "error", rmErr)
		}
		return fmt.Errorf("%w: project %s: %w", errdefs.ErrRouterConfig, reg.ShortUID, err)
	}
	err = r.Client().ConnectNetwork(ctx, reg.Network, r.ContainerName(), nil)
	if err != nil && !errors.Is(err, ctr.ErrAlreadyExists) {
		return fmt.Errorf("%w: connect %s: %w", errdefs.ErrRouterConfig, reg.Network, err)
	}
	r.Logger().InfoContext(ctx, "registered project with router", "project", reg.ShortUID)
	return r.Reload(ctx)
}

// Unregister removes a project's configuration, leaves its network and
// restarts the router. A router that is not running stays down: the file is
// deleted from the conf volume by a throwaway container. It does nothing
// when the router never existed.
func (r *Router) Unregister(ctx context.Context, shortUID, network string) error {
	l, err := r.Lock()
	if err != nil {
		return err
	}
	defer l.Release()

	running, err := r.IsRunning(ctx)
	if err != nil {
		return err
	}
	if !running {
		return r.unregisterOffline(ctx, shortUID, network)
	}

	shorts, err := r.Registered(ctx)
	if err != nil {
		return err
	}
	registered := slices.Contains(shorts, shortUID)

	if registered {
		if _, err = r.RunCommand(ctx, "rm -f "+configPath(shortUID), ""); err != nil {
			return fmt.Errorf("%w: %w", errdefs.ErrRouterConfig, err)
		}
	}
	if err = r.disconnect(ctx, network); err != nil {
		return err
	}
	if !registered {
		return nil
	}
	r.Logger().InfoContext(ctx, "unregistered project from router", "project", shortUID)
	return r.Reload(ctx)
}

func (r *Router) disconnect(ctx context.Context, network string) error {
	err := r.Client().DisconnectNetwork(ctx, network, r.ContainerName())
	if err != nil && !errors.Is(err, ctr.ErrNetworkNotFound) && !errors.Is(err, ctr.ErrContainerNotFound) {
		return fmt.Errorf("%w: disconnect %s: %w", errdefs.ErrRouterConfig, network, err)
	}
	return nil
}

func (r *Router) unregisterOffline(ctx context.Context, shortUID, network string) error {
	exists, err := r.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err = r.disconnect(ctx, network); err != nil {
			return err
		}
	}
	volume := r.VolumeName(confVolume)
	if _, err = r.Client().InspectVolume(ctx, volume); err != nil {
		if errors.Is(err, ctr.ErrVolumeNotFound) {
			return nil
		}
		return err
	}
	// Without the image the file stays; reconnect drops it once the
	// project network is gone.
	present, err := r.Client().ImageExists(ctx, r.BaseImage())
	if err != nil {
		return err
	}
	if !present {
		r.Logger().DebugContext(ctx, "router image absent, configuration left for the next start", "project", shortUID)
		return nil
	}
	if err = r.removeConfigOffline(ctx, volume, shortUID); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrRouterConfig, err)
	}
	r.Logger().InfoContext(ctx, "unregistered project from stopped router", "project", shortUID)
	return nil
}

// removeConfigOffline runs rm against the conf volume in a short-lived
// container that publishes no ports.
func (r *Router) removeConfigOffline(ctx context.Context, volume, shortUID string) error {
	client := r.Client()
	name := r.ContainerName() + cleanupSuffix
	if err := client.RemoveContainer(ctx, name); err != nil && !errors.Is(err, ctr.ErrContainerNotFound) {
		return fmt.Errorf("remove stale %s: %w", name, err)
	}
	_, err := client.CreateContainer(ctx, ctr.ContainerSpec{
		Name:       name,
		Image:      r.BaseImage(),
		Entrypoint: []string{"rm", "-f"},
		Cmd:        []string{configPath(shortUID)},
		Labels:     naming.Labels("", name, consts.KindRouter),
		Mounts:     []ctr.Mount{{Source: volume, Target: consts.RouterConfigDir}},
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if rmErr := client.RemoveContainer(ctx, name); rmErr != nil && !errors.Is(rmErr, ctr.ErrContainerNotFound) {
			r.Logger().WarnContext(ctx, "failed to remove cleanup container", "container", name, "error", rmErr)
		}
	}()
	if err = client.StartContainer(ctx, name); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	code, err := client.WaitContainer(ctx, name)
	if err != nil {
		return fmt.Errorf("wait %s: %w", name, err)
	}
	if code != 0 {
		return fmt.Errorf("%s exited with code %d", name, code)
	}
	return nil
}

// Config returns the configuration currently installed for a project.
func (r *Router) Config(ctx context.Context, shortUID string) (string, error) {
	running, err := r.IsRunning(ctx)
	if err != nil {
		return "", err
	}
	if !running {
		return "", errdefs.NewStateError(r.ContainerName(), "read config", errdefs.ErrRouterNotRunning)
	}
	return r.RunCommand(ctx, "cat "+configPath(shortUID), "")
}

// Status reports the router state and its registered projects.
func (r *Router) Status(ctx context.Context) (Status, error) {
	st := Status{Container: r.ContainerName(), Image: r.BaseImage()}
	info, exists, err := r.Inspect(ctx)
	if err != nil || !exists {
		return st, err
	}
	st.Running = info.Running
	st.Image = info.Image
	st.Networks = info.Networks
	if !info.Running {
		return st, nil
	}
	st.Projects, err = r.Registered(ctx)
	return st, err
}
