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

package service_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/ctr/fakectr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/logging"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/parser"
	"github.com/eminwux/kuplat/internal/service"
)

const (
	testUID     = "abc123def456"
	testEntropy = "0f0e0d0c0b0a"
)

func fastPolicy() service.ReadinessPolicy {
	return service.ReadinessPolicy{
		Timeout:         50 * time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func newService(t *testing.T, engine *fakectr.Engine, cfg parser.ServiceConfig) *service.Service {
	t.Helper()
	svc, err := service.New(cfg, service.Deps{
		Logger:  logging.NewNoopLogger(),
		Client:  engine,
		Metrics: metrics.New(),
		Project: container.ProjectRef{UID: testUID},
		Entropy: testEntropy,
	})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	return svc
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		wantType string
		wantOK   bool
	}{
		{name: "mariadb", typ: "mariadb", wantType: "mariadb", wantOK: true},
		{name: "mysql alias", typ: "mysql", wantType: "mariadb", wantOK: true},
		{name: "postgresql", typ: "postgresql", wantType: "postgresql", wantOK: true},
		{name: "varnish", typ: "varnish", wantType: "varnish", wantOK: true},
		{name: "unknown", typ: "network-storage", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := service.Lookup(tt.typ)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.typ, ok, tt.wantOK)
			}
			if ok && d.Type != tt.wantType {
				t.Fatalf("Lookup(%q).Type = %q, want %q", tt.typ, d.Type, tt.wantType)
			}
		})
	}
	if !slices.Contains(service.Types(), "redis-persistent") {
		t.Errorf("Types() missing redis-persistent: %v", service.Types())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     parser.ServiceConfig
		wantErr error
	}{
		{
			name:    "unknown type",
			cfg:     parser.ServiceConfig{Name: "fs", Type: "network-storage"},
			wantErr: errdefs.ErrUnknownServiceType,
		},
		{
			name:    "unsupported version",
			cfg:     parser.ServiceConfig{Name: "db", Type: "mariadb", Version: "3.1"},
			wantErr: errdefs.ErrUnsupportedVersion,
		},
		{
			name:    "bad group",
			cfg:     parser.ServiceConfig{Name: "db", Type: "mariadb", Group: "sometime"},
			wantErr: errdefs.ErrParser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.New(tt.cfg, service.Deps{
				Logger:  logging.NewNoopLogger(),
				Client:  fakectr.New(),
				Project: container.ProjectRef{UID: testUID},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_ResolvesVersionAndGroup(t *testing.T) {
	engine := fakectr.New()

	db := newService(t, engine, parser.ServiceConfig{Name: "db", Type: "mysql"})
	if db.TypeVersion() != "mariadb:10.11" {
		t.Errorf("TypeVersion = %q", db.TypeVersion())
	}
	if db.BaseImage() != "docker.io/library/mariadb:10.11" {
		t.Errorf("BaseImage = %q", db.BaseImage())
	}
	if db.Group() != service.GroupPreAppA {
		t.Errorf("Group = %v", db.Group())
	}
	if db.CommitImage() != "" {
		t.Errorf("services must not resolve commit images, got %q", db.CommitImage())
	}

	cache := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "varnish"})
	if cache.Group() != service.GroupPostAppA {
		t.Errorf("varnish group = %v", cache.Group())
	}

	late := newService(t, engine, parser.ServiceConfig{Name: "late", Type: "redis", Group: "post_app_b"})
	if late.Group() != service.GroupPostAppB {
		t.Errorf("override group = %v", late.Group())
	}
}

func TestParseGroup(t *testing.T) {
	for in, want := range map[string]service.Group{
		"pre-app-a":    service.GroupPreAppA,
		"PRE_APP_B":    service.GroupPreAppB,
		"post-app-a":   service.GroupPostAppA,
		" post-app-b ": service.GroupPostAppB,
	} {
		got, err := service.ParseGroup(in)
		if err != nil || got != want {
			t.Errorf("ParseGroup(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if got := service.GroupPostAppB.String(); got != "post-app-b" {
		t.Errorf("String() = %q", got)
	}
}

func TestDerivePassword(t *testing.T) {
	a := service.DerivePassword(service.PasswordSalt, "root", "db", testEntropy, testUID)
	b := service.DerivePassword(service.PasswordSalt, "root", "db", testEntropy, testUID)
	if a != b {
		t.Fatalf("password not deterministic: %q != %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("password length = %d, want 32", len(a))
	}
	variants := []string{
		service.DerivePassword(service.PasswordSalt, "user", "db", testEntropy, testUID),
		service.DerivePassword(service.PasswordSalt, "root", "db2", testEntropy, testUID),
		service.DerivePassword(service.PasswordSalt, "root", "db", "other", testUID),
		service.DerivePassword(service.PasswordSalt, "root", "db", testEntropy, "ffffffffffff"),
		service.DerivePassword("other salt", "root", "db", testEntropy, testUID),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d produced the same password", i)
		}
	}
}

func TestServiceData(t *testing.T) {
	engine := fakectr.New()
	db := newService(t, engine, parser.ServiceConfig{
		Name: "db",
		Type: "mariadb",
		Configuration: parser.ServiceConfiguration{
			Schemas: []string{"main", "legacy"},
			Endpoints: map[string]parser.EndpointConfig{
				"admin":    {DefaultSchema: "main", Privileges: map[string]string{"main": "admin"}},
				"reporter": {DefaultSchema: "legacy", Privileges: map[string]string{"legacy": "ro"}},
			},
		},
	})

	if got := db.Endpoints(); !slices.Equal(got, []string{"admin", "reporter"}) {
		t.Fatalf("Endpoints = %v", got)
	}

	rel, err := db.ServiceData("reporter")
	if err != nil {
		t.Fatalf("ServiceData: %v", err)
	}
	if rel.Host != "db.internal" || rel.Hostname != "db.internal" || rel.Port != 3306 || rel.Scheme != "mysql" {
		t.Errorf("unexpected address: %+v", rel)
	}
	if rel.Username != "reporter" || rel.Path != "legacy" || rel.Rel != "reporter" || rel.Service != "db" {
		t.Errorf("unexpected identity: %+v", rel)
	}
	if rel.Password != db.Password("reporter") || rel.Password == db.Password("admin") {
		t.Errorf("password not derived per user")
	}
	if rel.Type != "mariadb:10.11" || rel.Cluster != "abc123-local" {
		t.Errorf("type/cluster = %q/%q", rel.Type, rel.Cluster)
	}

	if _, err = db.ServiceData("missing"); !errors.Is(err, errdefs.ErrParser) {
		t.Fatalf("unknown endpoint err = %v, want ErrParser", err)
	}
}

func TestServiceData_DefaultEndpoint(t *testing.T) {
	engine := fakectr.New()
	pg := newService(t, engine, parser.ServiceConfig{Name: "pg", Type: "postgresql"})

	if got := pg.Endpoints(); !slices.Equal(got, []string{"postgresql"}) {
		t.Fatalf("Endpoints = %v", got)
	}
	rel, err := pg.ServiceData("")
	if err != nil {
		t.Fatalf("ServiceData: %v", err)
	}
	if rel.Scheme != "pgsql" || rel.Port != 5432 || rel.Path != parser.DefaultSchema || rel.Username != "postgresql" {
		t.Errorf("unexpected relationship: %+v", rel)
	}
	if _, err = pg.ServiceData("other"); !errors.Is(err, errdefs.ErrParser) {
		t.Fatalf("err = %v, want ErrParser", err)
	}
}

func TestNew_ContainerSpec(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	db := newService(t, engine, parser.ServiceConfig{Name: "db", Type: "mariadb"})

	if _, err := db.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec, ok := engine.Container("kuplat_abc123_db")
	if !ok {
		t.Fatalf("container not created")
	}
	if !slices.Contains(rec.Spec.Aliases, "db.internal") || !slices.Contains(rec.Spec.Aliases, "db") {
		t.Errorf("aliases = %v", rec.Spec.Aliases)
	}
	if !slices.Contains(rec.Spec.Env, "MARIADB_ROOT_PASSWORD="+db.Password("root")) {
		t.Errorf("root password not in env: %v", rec.Spec.Env)
	}
	if !slices.Equal(engine.VolumeNames(), []string{"kuplat_abc123_db_data"}) {
		t.Errorf("volumes = %v", engine.VolumeNames())
	}
}

func TestWaitReady(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after retries", func(t *testing.T) {
		engine := fakectr.New()
		var calls atomic.Int32
		engine.ExecFn = func(_ string, _ ctr.ExecSpec) (ctr.ExecResult, error) {
			if calls.Add(1) < 3 {
				return ctr.ExecResult{ExitCode: 1, Stderr: "not yet"}, nil
			}
			return ctr.ExecResult{}, nil
		}
		svc := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "redis"})
		if _, err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		policy := fastPolicy()
		policy.Timeout = 5 * time.Second
		if err := svc.WaitReady(ctx, policy); err != nil {
			t.Fatalf("WaitReady: %v", err)
		}
		if calls.Load() != 3 {
			t.Fatalf("probe ran %d times, want 3", calls.Load())
		}
	})

	t.Run("times out", func(t *testing.T) {
		engine := fakectr.New()
		engine.ExecFn = func(_ string, _ ctr.ExecSpec) (ctr.ExecResult, error) {
			return ctr.ExecResult{ExitCode: 1}, nil
		}
		svc := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "redis"})
		if _, err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		err := svc.WaitReady(ctx, fastPolicy())
		if !errors.Is(err, errdefs.ErrReadinessTimeout) {
			t.Fatalf("err = %v, want ErrReadinessTimeout", err)
		}
	})

	t.Run("bounds a probe that never returns", func(t *testing.T) {
		engine := fakectr.New()
		engine.ExecContextFn = func(ctx context.Context, _ string, _ ctr.ExecSpec) (ctr.ExecResult, error) {
			<-ctx.Done()
			return ctr.ExecResult{}, ctx.Err()
		}
		svc := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "redis"})
		if _, err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- svc.WaitReady(ctx, fastPolicy()) }()
		select {
		case err := <-done:
			if !errors.Is(err, errdefs.ErrReadinessTimeout) {
				t.Fatalf("err = %v, want ErrReadinessTimeout", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("WaitReady did not honour the readiness timeout")
		}
	})

	t.Run("caps each attempt", func(t *testing.T) {
		engine := fakectr.New()
		var calls atomic.Int32
		engine.ExecContextFn = func(ctx context.Context, _ string, _ ctr.ExecSpec) (ctr.ExecResult, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return ctr.ExecResult{}, ctx.Err()
			}
			return ctr.ExecResult{}, nil
		}
		svc := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "redis"})
		if _, err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		policy := fastPolicy()
		policy.Timeout = 5 * time.Second
		policy.AttemptTimeout = 20 * time.Millisecond
		if err := svc.WaitReady(ctx, policy); err != nil {
			t.Fatalf("WaitReady: %v", err)
		}
		if calls.Load() != 2 {
			t.Fatalf("probe ran %d times, want 2", calls.Load())
		}
	})

	t.Run("stops when container is not running", func(t *testing.T) {
		engine := fakectr.New()
		svc := newService(t, engine, parser.ServiceConfig{Name: "cache", Type: "redis"})
		if _, err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		engine.SetRunning(svc.ContainerName(), false)
		err := svc.WaitReady(ctx, fastPolicy())
		if !errors.Is(err, errdefs.ErrNotRunning) {
			t.Fatalf("err = %v, want ErrNotRunning", err)
		}
		if errors.Is(err, errdefs.ErrReadinessTimeout) {
			t.Fatalf("state errors must not be reported as timeouts")
		}
	})
}

func countExecs(t *testing.T, engine *fakectr.Engine, name, binary string) int {
	t.Helper()
	rec, ok := engine.Container(name)
	if !ok {
		t.Fatalf("container %s not found", name)
	}
	n := 0
	for _, e := range rec.Execs {
		if len(e.Cmd) > 0 && e.Cmd[0] == binary {
			n++
		}
	}
	return n
}

func TestUp_ProvisionsOnEveryStart(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	db := newService(t, engine, parser.ServiceConfig{Name: "db", Type: "mariadb"})

	if err := db.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if got := countExecs(t, engine, db.ContainerName(), "mariadb"); got != 1 {
		t.Fatalf("provisioning ran %d times after create, want 1", got)
	}
	if got := countExecs(t, engine, db.ContainerName(), "mariadb-admin"); got != 1 {
		t.Fatalf("readiness probe ran %d times, want 1", got)
	}

	if err := db.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if got := countExecs(t, engine, db.ContainerName(), "mariadb"); got != 2 {
		t.Fatalf("provisioning ran %d times after two starts, want 2", got)
	}
	if got := engine.CallCount("CreateContainer"); got != 1 {
		t.Fatalf("container created %d times, want 1", got)
	}
}

func TestUp_ProvisionsAfterFailedFirstStart(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	var ready atomic.Bool
	engine.ExecFn = func(_ string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
		if spec.Cmd[0] == "mariadb-admin" && !ready.Load() {
			return ctr.ExecResult{ExitCode: 1, Stderr: "connection refused"}, nil
		}
		return ctr.ExecResult{}, nil
	}
	db := newService(t, engine, parser.ServiceConfig{Name: "db", Type: "mariadb"})

	if err := db.Up(ctx, fastPolicy()); !errors.Is(err, errdefs.ErrReadinessTimeout) {
		t.Fatalf("first Up err = %v, want ErrReadinessTimeout", err)
	}
	if got := countExecs(t, engine, db.ContainerName(), "mariadb"); got != 0 {
		t.Fatalf("provisioning ran before the service was ready")
	}

	ready.Store(true)
	if err := db.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if got := countExecs(t, engine, db.ContainerName(), "mariadb"); got != 1 {
		t.Fatalf("provisioning ran %d times on the existing container, want 1", got)
	}
}

func TestUp_MySQLProvisionSQL(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	db := newService(t, engine, parser.ServiceConfig{
		Name: "db",
		Type: "mariadb",
		Configuration: parser.ServiceConfiguration{
			Schemas: []string{"main"},
			Endpoints: map[string]parser.EndpointConfig{
				"reader": {DefaultSchema: "main", Privileges: map[string]string{"main": "ro"}},
			},
		},
	})
	if err := db.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	rec, _ := engine.Container(db.ContainerName())
	var sql string
	for _, e := range rec.Execs {
		if e.Cmd[0] == "mariadb" {
			sql = e.Cmd[len(e.Cmd)-1]
		}
	}
	for _, want := range []string{
		"CREATE DATABASE IF NOT EXISTS `main`;",
		"CREATE USER IF NOT EXISTS 'reader'@'%'",
		"GRANT SELECT, EXECUTE, SHOW VIEW ON `main`.* TO 'reader'@'%';",
		"FLUSH PRIVILEGES;",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("provision SQL missing %q:\n%s", want, sql)
		}
	}
}

func TestUp_PostgresProvision(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	pg := newService(t, engine, parser.ServiceConfig{Name: "pg", Type: "postgresql"})
	if err := pg.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	rec, _ := engine.Container(pg.ContainerName())
	var scripts []string
	for _, e := range rec.Execs {
		scripts = append(scripts, strings.Join(e.Cmd, " "))
	}
	joined := strings.Join(scripts, "\n")
	for _, want := range []string{
		`createdb "main"`,
		`CREATE ROLE "postgresql" LOGIN PASSWORD`,
		`ALTER DATABASE "main" OWNER TO "postgresql";`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("provision commands missing %q:\n%s", want, joined)
		}
	}
}

func TestUp_ProvisionFailure(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	engine.ExecFn = func(_ string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
		if spec.Cmd[0] == "mariadb" {
			return ctr.ExecResult{ExitCode: 1, Stderr: "access denied"}, nil
		}
		return ctr.ExecResult{}, nil
	}
	db := newService(t, engine, parser.ServiceConfig{Name: "db", Type: "mariadb"})

	err := db.Up(ctx, fastPolicy())
	var cmdErr *errdefs.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 1 || !strings.Contains(cmdErr.Output, "access denied") {
		t.Fatalf("unexpected command error: %+v", cmdErr)
	}
}

func TestVarnish_Backends(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	cache := newService(t, engine, parser.ServiceConfig{
		Name:          "cache",
		Type:          "varnish",
		Relationships: map[string]string{"app": "web:http"},
	})
	if err := cache.Up(ctx, fastPolicy()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	rec, _ := engine.Container(cache.ContainerName())
	vcl := string(rec.Files["/etc/varnish/default.vcl"])
	if !strings.Contains(vcl, `.host = "kuplat_abc123_web";`) {
		t.Fatalf("vcl does not point at the app container:\n%s", vcl)
	}
	if !strings.Contains(vcl, "set req.backend_hint = app;") {
		t.Fatalf("vcl has no default backend:\n%s", vcl)
	}
}

func TestSolr_ServiceData(t *testing.T) {
	engine := fakectr.New()
	solr := newService(t, engine, parser.ServiceConfig{
		Name: "search",
		Type: "solr",
		Configuration: parser.ServiceConfiguration{
			Cores: map[string]parser.CoreConfig{"products": {}},
			Endpoints: map[string]parser.EndpointConfig{
				"products": {Core: "products"},
			},
		},
	})
	rel, err := solr.ServiceData("products")
	if err != nil {
		t.Fatalf("ServiceData: %v", err)
	}
	if rel.Path != "solr/products" || rel.Port != 8983 {
		t.Fatalf("unexpected relationship: %+v", rel)
	}
}
