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

package container_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/ctr/fakectr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/logging"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/naming"
	"github.com/opencontainers/go-digest"
)

const testUID = "abc123def456"

func newTestContainer(t *testing.T, engine *fakectr.Engine, mutate ...func(*container.Spec)) *container.Container {
	t.Helper()
	spec := container.Spec{
		Project: container.ProjectRef{
			UID:           testUID,
			NetworkLabels: map[string]string{consts.LabelProjectEntropy: "entropy"},
		},
		Name:      "db",
		Kind:      consts.KindService,
		BaseImage: "mariadb:10.11",
		Volumes:   map[string]string{"data": "/var/lib/mysql"},
		Aliases:   []string{"db", "db.internal"},
	}
	for _, fn := range mutate {
		fn(&spec)
	}
	c, err := container.New(logging.NewNoopLogger(), engine, metrics.New(), spec)
	if err != nil {
		t.Fatalf("container.New: %v", err)
	}
	return c
}

func TestNew_Names(t *testing.T) {
	c := newTestContainer(t, fakectr.New())
	if c.ContainerName() != "kuplat_abc123_db" {
		t.Errorf("container name = %q", c.ContainerName())
	}
	if c.NetworkName() != "kuplat_abc123" {
		t.Errorf("network name = %q", c.NetworkName())
	}
	if c.CommitImage() != "kuplat-commit:db_abc123" {
		t.Errorf("commit image = %q", c.CommitImage())
	}
	if c.VolumeName("data") != "kuplat_abc123_db_data" {
		t.Errorf("volume name = %q", c.VolumeName("data"))
	}
	labels := c.Labels()
	if labels[consts.LabelProjectUID] != testUID || labels[consts.LabelName] != "db" ||
		labels[consts.LabelKind] != consts.KindService {
		t.Errorf("labels = %v", labels)
	}
}

func TestNew_RequiresImage(t *testing.T) {
	_, err := container.New(logging.NewNoopLogger(), fakectr.New(), nil, container.Spec{
		Project: container.ProjectRef{UID: testUID},
		Name:    "db",
	})
	if err == nil {
		t.Fatalf("expected error for missing base image")
	}
}

func TestNew_Standalone(t *testing.T) {
	c := newTestContainer(t, fakectr.New(), func(s *container.Spec) {
		s.ContainerName = "kuplat_router"
		s.Standalone = true
		s.DisableCommit = true
	})
	if c.ContainerName() != "kuplat_router" || c.NetworkName() != "" || c.CommitImage() != "" {
		t.Fatalf("unexpected standalone names: %q %q %q", c.ContainerName(), c.NetworkName(), c.CommitImage())
	}
}

func TestStart_Idempotent(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	created, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if !created {
		t.Fatalf("first Start should create the container")
	}

	created, err = c.Start(ctx)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if created {
		t.Fatalf("second Start must not create")
	}
	if got := engine.CallCount("CreateContainer"); got != 1 {
		t.Fatalf("CreateContainer called %d times, want 1", got)
	}
	if names := engine.ContainerNames(); !slices.Equal(names, []string{"kuplat_abc123_db"}) {
		t.Fatalf("containers = %v", names)
	}
	running, err := c.IsRunning(ctx)
	if err != nil || !running {
		t.Fatalf("IsRunning = %v, %v", running, err)
	}
}

func TestStart_ProvisionsNetworkAndVolumes(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	net, err := engine.InspectNetwork(ctx, "kuplat_abc123")
	if err != nil {
		t.Fatalf("network not created: %v", err)
	}
	if net.Labels[consts.LabelProjectEntropy] != "entropy" || net.Labels[consts.LabelKind] != consts.KindProject {
		t.Errorf("network labels = %v", net.Labels)
	}
	vol, err := engine.InspectVolume(ctx, "kuplat_abc123_db_data")
	if err != nil {
		t.Fatalf("volume not created: %v", err)
	}
	if vol.Labels[consts.LabelProjectUID] != testUID {
		t.Errorf("volume labels = %v", vol.Labels)
	}
	rec, _ := engine.Container("kuplat_abc123_db")
	if rec.Spec.Image != "mariadb:10.11" {
		t.Errorf("image = %q, want base image", rec.Spec.Image)
	}
	if !slices.Equal(rec.Spec.Aliases, []string{"db", "db.internal"}) {
		t.Errorf("aliases = %v", rec.Spec.Aliases)
	}
	if engine.CallCount("PullImage") != 1 {
		t.Errorf("base image should be pulled once")
	}
}

func TestStart_ExistingStopped(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	engine.SetRunning(c.ContainerName(), false)

	created, err := c.Start(ctx)
	if err != nil || created {
		t.Fatalf("restart of stopped container: created=%v err=%v", created, err)
	}
	if engine.CallCount("StartContainer") != 2 {
		t.Errorf("StartContainer count = %d", engine.CallCount("StartContainer"))
	}
}

func TestStart_PullFailure(t *testing.T) {
	engine := fakectr.New()
	engine.PullFn = func(string) error { return errors.New("registry down") }
	c := newTestContainer(t, engine)

	_, err := c.Start(context.Background())
	if !errors.Is(err, errdefs.ErrPullImage) {
		t.Fatalf("expected ErrPullImage, got %v", err)
	}
	if len(engine.ContainerNames()) != 0 {
		t.Fatalf("no container should be created")
	}
}

func TestStop_RemovesContainer(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop on absent container: %v", err)
	}
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	exists, err := c.Exists(ctx)
	if err != nil || exists {
		t.Fatalf("container should be removed after stop: exists=%v err=%v", exists, err)
	}
	if _, err = engine.InspectVolume(ctx, c.VolumeName("data")); err != nil {
		t.Fatalf("stop must keep volumes: %v", err)
	}
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if engine.CallCount("CreateContainer") != 2 || engine.CallCount("RemoveContainer") != 1 {
		t.Fatalf("restart should remove and recreate")
	}
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	engine.ExecFn = func(_ string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
		if strings.Contains(spec.Cmd[2], "fail") {
			return ctr.ExecResult{ExitCode: 3, Stderr: "boom"}, nil
		}
		return ctr.ExecResult{Stdout: "ok\n"}, nil
	}
	c := newTestContainer(t, engine)

	_, err := c.RunCommand(ctx, "true", "")
	var stateErr *errdefs.StateError
	if !errors.As(err, &stateErr) || !errors.Is(err, errdefs.ErrState) {
		t.Fatalf("expected state error before start, got %v", err)
	}

	if _, err = c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := c.RunCommand(ctx, "echo ok", "root")
	if err != nil || out != "ok\n" {
		t.Fatalf("RunCommand = %q, %v", out, err)
	}

	_, err = c.RunCommand(ctx, "fail now", "")
	var cmdErr *errdefs.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 3 || cmdErr.Output != "boom" || cmdErr.Command != "fail now" {
		t.Errorf("command error = %+v", cmdErr)
	}
	if !errors.Is(err, errdefs.ErrCommand) {
		t.Errorf("CommandError should unwrap to ErrCommand")
	}
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	err := c.UploadFile(ctx, []byte("x"), "/etc/app.conf", 0o600)
	if !errors.Is(err, errdefs.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err = c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err = c.UploadFile(ctx, []byte("listen 80;"), "/etc/nginx/conf.d/app.conf", 0); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	rec, _ := engine.Container(c.ContainerName())
	if got := string(rec.Files["/etc/nginx/conf.d/app.conf"]); got != "listen 80;" {
		t.Fatalf("uploaded file = %q", got)
	}
}

func TestBuildCache(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	fresh := newTestContainer(t, engine)
	if _, err := fresh.Start(ctx); err != nil {
		t.Fatalf("Start after commit: %v", err)
	}
	rec, _ := engine.Container(fresh.ContainerName())
	if rec.Spec.Image != fresh.CommitImage() {
		t.Fatalf("image after commit = %q, want %q", rec.Spec.Image, fresh.CommitImage())
	}

	if _, err := fresh.Purge(ctx, false); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	again := newTestContainer(t, engine)
	if _, err := again.Start(ctx); err != nil {
		t.Fatalf("Start after purge: %v", err)
	}
	rec, _ = engine.Container(again.ContainerName())
	if rec.Spec.Image != "mariadb:10.11" {
		t.Fatalf("image after purge = %q, want base image", rec.Spec.Image)
	}
}

func TestCommit_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	has, err := c.HasCommitImage(ctx)
	if err != nil || has {
		t.Fatalf("HasCommitImage before commit = %v, %v", has, err)
	}
	if _, err = c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	has, err = c.HasCommitImage(ctx)
	if err != nil || !has {
		t.Fatalf("HasCommitImage after commit = %v, %v", has, err)
	}
	image, _ := c.Image(ctx)
	if image != c.CommitImage() {
		t.Fatalf("Image() = %q", image)
	}
}

func TestCommit_RequiresContainer(t *testing.T) {
	c := newTestContainer(t, fakectr.New())
	if _, err := c.Commit(context.Background()); !errors.Is(err, errdefs.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestIsStale(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	built := digest.FromString("v1")
	c := newTestContainer(t, engine, func(s *container.Spec) { s.ConfigDigest = built })
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if stale, err := c.IsStale(ctx); err != nil || stale {
		t.Fatalf("fresh build reported stale: %v %v", stale, err)
	}

	changed := newTestContainer(t, engine, func(s *container.Spec) { s.ConfigDigest = digest.FromString("v2") })
	if stale, err := changed.IsStale(ctx); err != nil || !stale {
		t.Fatalf("changed config should be stale: %v %v", stale, err)
	}
	got, err := changed.CommitDigest(ctx)
	if err != nil || got != built.String() {
		t.Fatalf("CommitDigest = %q, %v", got, err)
	}
}

func TestPurge_DryRun(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	report, err := c.Purge(ctx, true)
	if err != nil {
		t.Fatalf("dry-run Purge: %v", err)
	}
	if !report.DryRun || len(report.Containers) != 1 || len(report.Images) != 1 || len(report.Volumes) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if running, _ := c.IsRunning(ctx); !running {
		t.Fatalf("dry run must not stop the container")
	}
	if has, _ := c.HasCommitImage(ctx); !has {
		t.Fatalf("dry run must not remove the commit image")
	}
}

func TestPurge_Completeness(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	report, err := c.Purge(ctx, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if report.Empty() {
		t.Fatalf("report should not be empty")
	}
	filter := naming.ProjectFilter(testUID)
	if list, _ := engine.ListContainers(ctx, filter); len(list) != 0 {
		t.Errorf("containers left: %v", list)
	}
	if list, _ := engine.ListVolumes(ctx, filter); len(list) != 0 {
		t.Errorf("volumes left: %v", list)
	}
	if list, _ := engine.ListImages(ctx, filter); len(list) != 0 {
		t.Errorf("images left: %v", list)
	}
}

func TestPurgeReport_Merge(t *testing.T) {
	r := container.PurgeReport{Containers: []string{"a"}}
	r.Merge(container.PurgeReport{Containers: []string{"a", "b"}, Networks: []string{"n"}})
	if !slices.Equal(r.Containers, []string{"a", "b"}) || !slices.Equal(r.Networks, []string{"n"}) {
		t.Fatalf("merged = %+v", r)
	}
}

func TestShell_Piped(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	var lastCmd []string
	engine.ExecFn = func(_ string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
		lastCmd = spec.Cmd
		if strings.Contains(strings.Join(spec.Cmd, " "), "mysql") {
			return ctr.ExecResult{Stdout: "imported\n", ExitCode: 0}, nil
		}
		return ctr.ExecResult{}, nil
	}
	c := newTestContainer(t, engine)
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var stdout bytes.Buffer
	code, err := c.Shell(ctx, "mysql main", "", container.ShellIO{
		Stdin:  strings.NewReader("SELECT 1;"),
		Stdout: &stdout,
	})
	if err != nil || code != 0 {
		t.Fatalf("Shell = %d, %v", code, err)
	}
	if stdout.String() != "imported\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	rec, _ := engine.Container(c.ContainerName())
	var uploaded string
	for path, data := range rec.Files {
		if strings.HasPrefix(path, "/tmp/kuplat-stdin-") && string(data) == "SELECT 1;" {
			uploaded = path
		}
	}
	if uploaded == "" {
		t.Fatalf("stdin was not uploaded: %v", rec.Files)
	}
	var piped bool
	for _, e := range rec.Execs {
		if len(e.Cmd) == 3 && e.Cmd[2] == "cat "+uploaded+" | mysql main" {
			piped = true
		}
	}
	if !piped {
		t.Errorf("expected cat pipe exec, execs = %+v", rec.Execs)
	}
	if len(lastCmd) != 3 || lastCmd[0] != "rm" {
		t.Errorf("temp file should be removed last, got %v", lastCmd)
	}
}

func TestShell_RequiresRunning(t *testing.T) {
	c := newTestContainer(t, fakectr.New())
	_, err := c.Shell(context.Background(), "ls", "", container.ShellIO{})
	if !errors.Is(err, errdefs.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStartFromBase_IgnoresCommitImage(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	c := newTestContainer(t, engine)

	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := c.StartFromBase(ctx); err != nil {
		t.Fatalf("StartFromBase: %v", err)
	}
	rec, ok := engine.Container(c.ContainerName())
	if !ok || !rec.Running {
		t.Fatalf("container not running after StartFromBase")
	}
	if rec.Spec.Image != "mariadb:10.11" {
		t.Fatalf("image = %q, want base image", rec.Spec.Image)
	}
	if got := engine.CallCount("CreateContainer"); got != 2 {
		t.Fatalf("CreateContainer count = %d, want 2", got)
	}
}
