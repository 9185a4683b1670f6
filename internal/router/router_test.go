//go:build !integration

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

package router_test

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/ctr/fakectr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/logging"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/router"
)

const testNetwork = "kuplat_abc123"

// fakeNginx answers the commands the router runs inside its container. The
// configuration directory is a volume, so it is tracked outside the
// container record, which does not survive a restart.
type fakeNginx struct {
	engine *fakectr.Engine

	mu         sync.Mutex
	confs      map[string][]byte
	hasCert    bool
	rejectTest bool
}

func (n *fakeNginx) exec(name string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cmd := spec.Cmd[len(spec.Cmd)-1]
	switch {
	case strings.HasPrefix(cmd, "ls -1 "):
		names := make([]string, 0, len(n.confs))
		for conf := range n.confs {
			names = append(names, conf)
		}
		sort.Strings(names)
		return ctr.ExecResult{Stdout: strings.Join(append(names, "default.conf"), "\n") + "\n"}, nil
	case strings.HasPrefix(cmd, "test -s "):
		if !n.hasCert {
			return ctr.ExecResult{ExitCode: 1}, nil
		}
	case cmd == "nginx -t -q":
		c, _ := n.engine.Container(name)
		for file, data := range c.Files {
			if path.Dir(file) == consts.RouterConfigDir {
				n.confs[path.Base(file)] = data
			}
		}
		if n.rejectTest {
			return ctr.ExecResult{ExitCode: 1, Stderr: "nginx: [emerg] unexpected end of file"}, nil
		}
	case strings.HasPrefix(cmd, "rm -f "):
		delete(n.confs, path.Base(strings.TrimPrefix(cmd, "rm -f ")))
	}
	return ctr.ExecResult{}, nil
}

func newRouter(t *testing.T) (*router.Router, *fakectr.Engine, *fakeNginx) {
	t.Helper()
	engine := fakectr.New()
	nginx := &fakeNginx{engine: engine, confs: map[string][]byte{}}
	engine.ExecFn = nginx.exec

	r, err := router.New(logging.NewNoopLogger(), engine, metrics.New(), router.Options{
		LockPath: filepath.Join(t.TempDir(), "router.lock"),
	})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	return r, engine, nginx
}

func createNetwork(t *testing.T, engine *fakectr.Engine, name string) {
	t.Helper()
	if _, err := engine.CreateNetwork(context.Background(), name, nil); err != nil {
		t.Fatalf("CreateNetwork: %v", err)
	}
}

func networkMembers(t *testing.T, engine *fakectr.Engine, name string) []string {
	t.Helper()
	info, err := engine.InspectNetwork(context.Background(), name)
	if err != nil {
		t.Fatalf("InspectNetwork: %v", err)
	}
	return info.Containers
}

func TestNew_ContainerSpec(t *testing.T) {
	r, _, _ := newRouter(t)
	if r.ContainerName() != consts.RouterContainerName {
		t.Errorf("container name = %q", r.ContainerName())
	}
	if r.NetworkName() != "" {
		t.Errorf("router must not belong to a project network, got %q", r.NetworkName())
	}
	if r.CommitImage() != "" {
		t.Errorf("router must not use a commit image, got %q", r.CommitImage())
	}
	if r.BaseImage() != router.DefaultOptions().Image {
		t.Errorf("base image = %q", r.BaseImage())
	}
}

func TestEnsureRunning_InstallsCertificate(t *testing.T) {
	r, engine, _ := newRouter(t)
	ctx := context.Background()

	if err := r.EnsureRunning(ctx); err != nil {
		t.Fatalf("EnsureRunning: %v", err)
	}
	c, ok := engine.Container(consts.RouterContainerName)
	if !ok || !c.Running {
		t.Fatalf("router container not running")
	}
	cert := string(c.Files[consts.RouterCertDir+"/kuplat.crt"])
	if !strings.HasPrefix(cert, "-----BEGIN CERTIFICATE-----") {
		t.Errorf("certificate not installed, got %q", cert)
	}
	if len(c.Files[consts.RouterCertDir+"/kuplat.key"]) == 0 {
		t.Error("key not installed")
	}

	var ports []int
	for _, p := range c.Spec.Ports {
		ports = append(ports, p.HostPort)
	}
	if !slices.Equal(ports, []int{80, 443}) {
		t.Errorf("published ports = %v", ports)
	}
}

func TestRegister(t *testing.T) {
	r, engine, nginx := newRouter(t)
	ctx := context.Background()
	createNetwork(t, engine, testNetwork)

	err := r.Register(ctx, router.Registration{
		ShortUID: "abc123",
		Network:  testNetwork,
		Config:   []byte("server {}\n"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if string(nginx.confs["abc123.conf"]) != "server {}\n" {
		t.Errorf("config not uploaded: %q", nginx.confs["abc123.conf"])
	}
	if !slices.Contains(networkMembers(t, engine, testNetwork), consts.RouterContainerName) {
		t.Error("router not connected to the project network after restart")
	}
	if got := engine.CallCount("RemoveContainer"); got != 1 {
		t.Errorf("expected one restart, got %d removals", got)
	}

	shorts, err := r.Registered(ctx)
	if err != nil {
		t.Fatalf("Registered: %v", err)
	}
	if !slices.Equal(shorts, []string{"abc123"}) {
		t.Errorf("Registered = %v", shorts)
	}

	st, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || !slices.Equal(st.Projects, []string{"abc123"}) {
		t.Errorf("Status = %+v", st)
	}
}

func TestRegister_RejectedConfig(t *testing.T) {
	r, engine, nginx := newRouter(t)
	createNetwork(t, engine, testNetwork)
	nginx.rejectTest = true

	err := r.Register(context.Background(), router.Registration{
		ShortUID: "abc123",
		Network:  testNetwork,
		Config:   []byte("server {"),
	})
	if !errors.Is(err, errdefs.ErrRouterConfig) {
		t.Fatalf("expected ErrRouterConfig, got %v", err)
	}
	if _, ok := nginx.confs["abc123.conf"]; ok {
		t.Error("rejected config was left in place")
	}
	if slices.Contains(networkMembers(t, engine, testNetwork), consts.RouterContainerName) {
		t.Error("router joined the network of a rejected project")
	}
}

func TestRegister_DropsVanishedProjects(t *testing.T) {
	r, engine, nginx := newRouter(t)
	createNetwork(t, engine, testNetwork)
	nginx.confs["gone00.conf"] = []byte("server {}\n")

	err := r.Register(context.Background(), router.Registration{
		ShortUID: "abc123",
		Network:  testNetwork,
		Config:   []byte("server {}\n"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := nginx.confs["gone00.conf"]; ok {
		t.Error("config of a project without network was kept")
	}
}

func TestUnregister(t *testing.T) {
	r, engine, nginx := newRouter(t)
	ctx := context.Background()
	createNetwork(t, engine, testNetwork)

	if err := r.Register(ctx, router.Registration{
		ShortUID: "abc123",
		Network:  testNetwork,
		Config:   []byte("server {}\n"),
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Unregister(ctx, "abc123", testNetwork); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if len(nginx.confs) != 0 {
		t.Errorf("configs left behind: %v", nginx.confs)
	}
	if slices.Contains(networkMembers(t, engine, testNetwork), consts.RouterContainerName) {
		t.Error("router still connected to the project network")
	}
}

func TestUnregister_NoRouter(t *testing.T) {
	r, engine, _ := newRouter(t)

	if err := r.Unregister(context.Background(), "abc123", testNetwork); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if names := engine.ContainerNames(); len(names) != 0 {
		t.Errorf("router created on unregister: %v", names)
	}
}

// runCleanup emulates the throwaway container that deletes a file from the
// conf volume while the router is down.
func (n *fakeNginx) runCleanup(spec ctr.ContainerSpec) error {
	if !slices.Equal(spec.Entrypoint, []string{"rm", "-f"}) {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, file := range spec.Cmd {
		delete(n.confs, path.Base(file))
	}
	return nil
}

func TestUnregister_StoppedRouterStaysDown(t *testing.T) {
	r, engine, nginx := newRouter(t)
	ctx := context.Background()
	createNetwork(t, engine, testNetwork)

	if err := r.Register(ctx, router.Registration{
		ShortUID: "abc123",
		Network:  testNetwork,
		Config:   []byte("server {}\n"),
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	var created []ctr.ContainerSpec
	engine.CreateFn = func(spec ctr.ContainerSpec) error {
		created = append(created, spec)
		return nginx.runCleanup(spec)
	}

	t.Run("unknown project", func(t *testing.T) {
		if err := r.Unregister(ctx, "zzz999", "kuplat_zzz999"); err != nil {
			t.Fatalf("Unregister: %v", err)
		}
		if running, _ := r.IsRunning(ctx); running {
			t.Fatal("router started by an unrelated unregister")
		}
		if _, ok := nginx.confs["abc123.conf"]; !ok {
			t.Error("registered configuration removed")
		}
	})

	t.Run("registered project", func(t *testing.T) {
		if err := r.Unregister(ctx, "abc123", testNetwork); err != nil {
			t.Fatalf("Unregister: %v", err)
		}
		if running, _ := r.IsRunning(ctx); running {
			t.Fatal("router started by unregister")
		}
		if _, ok := nginx.confs["abc123.conf"]; ok {
			t.Error("configuration left in the conf volume")
		}
	})

	for _, spec := range created {
		if spec.Name == consts.RouterContainerName {
			t.Fatalf("router container recreated")
		}
		if len(spec.Ports) != 0 {
			t.Errorf("cleanup container publishes ports: %v", spec.Ports)
		}
	}
	if len(created) != 2 {
		t.Errorf("cleanup containers created = %d, want 2", len(created))
	}
	if names := engine.ContainerNames(); len(names) != 0 {
		t.Errorf("containers left behind: %v", names)
	}
}

func TestRegister_Locked(t *testing.T) {
	r, engine, _ := newRouter(t)
	createNetwork(t, engine, testNetwork)

	l, err := r.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer l.Release()

	err = r.Register(context.Background(), router.Registration{ShortUID: "abc123", Network: testNetwork})
	if !errors.Is(err, errdefs.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestConfig_NotRunning(t *testing.T) {
	r, _, _ := newRouter(t)
	_, err := r.Config(context.Background(), "abc123")
	if !errors.Is(err, errdefs.ErrRouterNotRunning) {
		t.Fatalf("expected ErrRouterNotRunning, got %v", err)
	}
}
