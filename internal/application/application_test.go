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

package application_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/eminwux/kuplat/internal/application"
	"github.com/eminwux/kuplat/internal/container"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/ctr/fakectr"
	"github.com/eminwux/kuplat/internal/errdefs"
	"github.com/eminwux/kuplat/internal/logging"
	"github.com/eminwux/kuplat/internal/metrics"
	"github.com/eminwux/kuplat/internal/parser"
	"github.com/eminwux/kuplat/internal/service"
	"golang.org/x/crypto/ssh"
)

const testUID = "abc123def456"

type fakeDependency struct {
	NameFn        func() string
	IsRunningFn   func(ctx context.Context) (bool, error)
	ServiceDataFn func(endpoint string) (service.Relationship, error)
}

func (f *fakeDependency) Name() string {
	if f.NameFn == nil {
		return "db"
	}
	return f.NameFn()
}

func (f *fakeDependency) ContainerName() string { return "kuplat_abc123_" + f.Name() }

func (f *fakeDependency) IsRunning(ctx context.Context) (bool, error) {
	if f.IsRunningFn == nil {
		return true, nil
	}
	return f.IsRunningFn(ctx)
}

func (f *fakeDependency) ServiceData(endpoint string) (service.Relationship, error) {
	if f.ServiceDataFn == nil {
		return service.Relationship{Service: f.Name(), Rel: endpoint, Host: f.Name() + ".internal", Port: 3306}, nil
	}
	return f.ServiceDataFn(endpoint)
}

// execRecorder captures every command run in the fake engine.
type execRecorder struct {
	mu    sync.Mutex
	execs []ctr.ExecSpec
	fail  func(spec ctr.ExecSpec) bool
}

func (r *execRecorder) fn(_ string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, spec)
	if r.fail != nil && r.fail(spec) {
		return ctr.ExecResult{ExitCode: 2, Stderr: "hook exploded"}, nil
	}
	return ctr.ExecResult{}, nil
}

func (r *execRecorder) scripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.execs))
	for _, e := range r.execs {
		out = append(out, strings.Join(e.Cmd, " "))
	}
	return out
}

func (r *execRecorder) contains(substr string) bool {
	return slices.ContainsFunc(r.scripts(), func(s string) bool { return strings.Contains(s, substr) })
}

func baseConfig() parser.ApplicationConfig {
	return parser.ApplicationConfig{
		Name:          "app",
		Type:          "php",
		Version:       "8.3",
		Relationships: map[string]string{"database": "db:mysql"},
		Mounts:        map[string]parser.MountConfig{"web/uploads": {Source: "local", SourcePath: "uploads"}},
		Hooks:         parser.HooksConfig{Build: "composer install", Deploy: "php bin/migrate"},
		Variables: map[string]map[string]any{
			"env": {"APP_ENV": "dev"},
			"php": {"memory_limit": "256M"},
		},
		Web: parser.WebConfig{
			Locations: map[string]parser.LocationConfig{
				"/": {Root: "web", Passthru: parser.Passthru{Enabled: true, Target: "/index.php"}},
			},
			Upstream: parser.UpstreamConfig{SocketFamily: "tcp", Protocol: "fastcgi"},
		},
	}
}

func newApp(
	t *testing.T,
	engine *fakectr.Engine,
	cfg parser.ApplicationConfig,
	dep application.Dependency,
) *application.Application {
	t.Helper()
	app, err := application.New(cfg, application.Deps{
		Logger:        logging.NewNoopLogger(),
		Client:        engine,
		Metrics:       metrics.New(),
		Project:       container.ProjectRef{UID: testUID},
		Entropy:       "entropy",
		ProjectPath:   "/src/project",
		Relationships: map[string]application.Binding{"database": {Service: dep, Endpoint: "mysql"}},
		Routes:        map[string]any{"https://abc123.local/": map[string]any{"type": "upstream"}},
		Variables:     map[string]string{"env:FEATURE": "on", "secret": "s3"},
	})
	if err != nil {
		t.Fatalf("application.New: %v", err)
	}
	return app
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*parser.ApplicationConfig)
		deps    map[string]application.Binding
		wantErr error
	}{
		{
			name:    "unknown type",
			mutate:  func(c *parser.ApplicationConfig) { c.Type = "cobol" },
			wantErr: errdefs.ErrUnknownApplicationType,
		},
		{
			name:    "unsupported version",
			mutate:  func(c *parser.ApplicationConfig) { c.Version = "5.6" },
			wantErr: errdefs.ErrUnsupportedVersion,
		},
		{
			name:    "unresolved relationship",
			deps:    map[string]application.Binding{},
			wantErr: errdefs.ErrParser,
		},
		{
			name: "unknown endpoint",
			deps: map[string]application.Binding{"database": {
				Service: &fakeDependency{ServiceDataFn: func(string) (service.Relationship, error) {
					return service.Relationship{}, errdefs.ErrParser
				}},
				Endpoint: "nope",
			}},
			wantErr: errdefs.ErrParser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			deps := tt.deps
			if deps == nil {
				deps = map[string]application.Binding{"database": {Service: &fakeDependency{}, Endpoint: "mysql"}}
			}
			_, err := application.New(cfg, application.Deps{
				Logger:        logging.NewNoopLogger(),
				Client:        fakectr.New(),
				Project:       container.ProjectRef{UID: testUID},
				Relationships: deps,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Environment(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	app := newApp(t, engine, baseConfig(), &fakeDependency{})

	if _, err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec, ok := engine.Container("kuplat_abc123_app")
	if !ok {
		t.Fatalf("container not created")
	}
	env := rec.Spec.Env

	for key, want := range map[string]string{
		"PLATFORM_APPLICATION_NAME": "app",
		"PLATFORM_PROJECT":          "abc123",
		"PLATFORM_PROJECT_ENTROPY":  "entropy",
		"PLATFORM_BRANCH":           "local",
		"PLATFORM_DOCUMENT_ROOT":    "/app/web",
		"PORT":                      "8888",
		"APP_ENV":                   "dev",
		"FEATURE":                   "on",
	} {
		if got, _ := envValue(env, key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if !slices.IsSorted(env) {
		t.Errorf("environment is not sorted: %v", env)
	}

	raw, _ := envValue(env, "PLATFORM_RELATIONSHIPS")
	var rels map[string][]service.Relationship
	if err := application.DecodeEnvJSON(raw, &rels); err != nil {
		t.Fatalf("decode relationships: %v", err)
	}
	if len(rels["database"]) != 1 || rels["database"][0].Host != "db.internal" || rels["database"][0].Rel != "mysql" {
		t.Errorf("relationships = %+v", rels)
	}

	raw, _ = envValue(env, "PLATFORM_VARIABLES")
	var vars map[string]string
	if err := application.DecodeEnvJSON(raw, &vars); err != nil {
		t.Fatalf("decode variables: %v", err)
	}
	if vars["php:memory_limit"] != "256M" || vars["secret"] != "s3" {
		t.Errorf("variables = %v", vars)
	}
	if _, leaked := vars["env:FEATURE"]; leaked {
		t.Errorf("env: variables must not appear in PLATFORM_VARIABLES")
	}

	if !slices.Contains(rec.Spec.Aliases, "app.internal") {
		t.Errorf("aliases = %v", rec.Spec.Aliases)
	}
	var sawSource, sawMount bool
	for _, m := range rec.Spec.Mounts {
		if m.Bind && m.Source == "/src/project" && m.Target == "/mnt/src" && m.ReadOnly {
			sawSource = true
		}
		if !m.Bind && m.Source == "kuplat_abc123_app_mount-web-uploads" && m.Target == "/app/web/uploads" {
			sawMount = true
		}
	}
	if !sawSource || !sawMount {
		t.Errorf("mounts = %+v", rec.Spec.Mounts)
	}
}

func TestStart_DependencyGate(t *testing.T) {
	engine := fakectr.New()
	dep := &fakeDependency{IsRunningFn: func(context.Context) (bool, error) { return false, nil }}
	app := newApp(t, engine, baseConfig(), dep)

	_, err := app.Start(context.Background())
	if !errors.Is(err, errdefs.ErrDependency) || !errors.Is(err, errdefs.ErrState) {
		t.Fatalf("err = %v, want dependency state error", err)
	}
	var stateErr *errdefs.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("err is not a *StateError: %T", err)
	}
	if names := engine.ContainerNames(); len(names) != 0 {
		t.Fatalf("no container may be created, got %v", names)
	}
}

func TestStart_WithRealService(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	db, err := service.New(parser.ServiceConfig{Name: "db", Type: "mariadb"}, service.Deps{
		Logger:  logging.NewNoopLogger(),
		Client:  engine,
		Project: container.ProjectRef{UID: testUID},
		Entropy: "entropy",
	})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	app := newApp(t, engine, baseConfig(), db)

	if _, err = app.Start(ctx); !errors.Is(err, errdefs.ErrDependency) {
		t.Fatalf("start before service: err = %v", err)
	}
	if _, err = db.Start(ctx); err != nil {
		t.Fatalf("db.Start: %v", err)
	}
	if _, err = app.Start(ctx); err != nil {
		t.Fatalf("start after service: %v", err)
	}
	rels := app.Relationships()["database"]
	if len(rels) != 1 || rels[0].Password != db.Password("mysql") {
		t.Fatalf("relationship = %+v", rels)
	}
}

func TestBuild_CommitsAndCaches(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	rec := &execRecorder{}
	engine.ExecFn = rec.fn
	app := newApp(t, engine, baseConfig(), &fakeDependency{})

	result, err := app.Build(ctx, application.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ImageID == "" || result.HookError != nil {
		t.Fatalf("result = %+v", result)
	}
	for _, want := range []string{"apk add --no-cache nginx", "rsync -a --delete", "composer install", "touch /app/.kuplat-built"} {
		if !rec.contains(want) {
			t.Errorf("build did not run %q; ran %v", want, rec.scripts())
		}
	}
	if !slices.Contains(engine.ImageRefs(), app.CommitImage()) {
		t.Fatalf("commit image missing: %v", engine.ImageRefs())
	}
	c, ok := engine.Container(app.ContainerName())
	if !ok || !c.Running || c.Spec.Image != app.CommitImage() {
		t.Fatalf("container after build = %+v", c.Spec)
	}

	fresh := newApp(t, engine, baseConfig(), &fakeDependency{})
	if err = fresh.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err = fresh.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c, _ = engine.Container(fresh.ContainerName())
	if c.Spec.Image != fresh.CommitImage() {
		t.Fatalf("fresh start image = %q, want commit image", c.Spec.Image)
	}
	if _, ok = c.Files["/etc/nginx/http.d/default.conf"]; !ok {
		t.Errorf("web config not refreshed on start of a built container")
	}
	stale, err := fresh.IsStale(ctx)
	if err != nil || stale {
		t.Fatalf("IsStale = %v, %v", stale, err)
	}

	changed := baseConfig()
	changed.Hooks.Build = "composer install --no-dev"
	edited := newApp(t, engine, changed, &fakeDependency{})
	if stale, _ = edited.IsStale(ctx); !stale {
		t.Fatalf("config change should make the build stale")
	}

	if _, err = fresh.Purge(ctx, false); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	again := newApp(t, engine, baseConfig(), &fakeDependency{})
	if _, err = again.Start(ctx); err != nil {
		t.Fatalf("Start after purge: %v", err)
	}
	c, _ = engine.Container(again.ContainerName())
	if c.Spec.Image != again.BaseImage() {
		t.Fatalf("image after purge = %q, want base", c.Spec.Image)
	}
}

func TestBuild_HookFailure(t *testing.T) {
	tests := []struct {
		name      string
		typ       string
		version   string
		wantError bool
	}{
		{name: "php tolerates", typ: "php", version: "8.3", wantError: false},
		{name: "nodejs fails", typ: "nodejs", version: "20", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := fakectr.New()
			rec := &execRecorder{fail: func(spec ctr.ExecSpec) bool {
				return strings.Contains(strings.Join(spec.Cmd, " "), "composer install")
			}}
			engine.ExecFn = rec.fn
			cfg := baseConfig()
			cfg.Type, cfg.Version = tt.typ, tt.version
			app := newApp(t, engine, cfg, &fakeDependency{})

			result, err := app.Build(context.Background(), application.BuildOptions{})
			if tt.wantError {
				if !errors.Is(err, errdefs.ErrBuild) || !errors.Is(err, errdefs.ErrCommand) {
					t.Fatalf("err = %v, want build command error", err)
				}
				if slices.Contains(engine.ImageRefs(), app.CommitImage()) {
					t.Fatalf("failed build must not commit")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !errors.Is(result.HookError, errdefs.ErrCommand) {
				t.Fatalf("HookError = %v", result.HookError)
			}
			if !slices.Contains(engine.ImageRefs(), app.CommitImage()) {
				t.Fatalf("tolerated hook failure must still commit")
			}
		})
	}
}

func TestBuild_RequiresSource(t *testing.T) {
	app, err := application.New(baseConfig(), application.Deps{
		Logger:        logging.NewNoopLogger(),
		Client:        fakectr.New(),
		Project:       container.ProjectRef{UID: testUID},
		Relationships: map[string]application.Binding{"database": {Service: &fakeDependency{}, Endpoint: "mysql"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err = app.Build(context.Background(), application.BuildOptions{}); !errors.Is(err, errdefs.ErrProjectPathNeeded) {
		t.Fatalf("err = %v, want ErrProjectPathNeeded", err)
	}
}

func generateKey(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(block)
}

func TestBuild_SSHKey(t *testing.T) {
	ctx := context.Background()

	t.Run("installed and removed", func(t *testing.T) {
		engine := fakectr.New()
		rec := &execRecorder{}
		engine.ExecFn = rec.fn
		app := newApp(t, engine, baseConfig(), &fakeDependency{})

		_, err := app.Build(ctx, application.BuildOptions{SSHKey: generateKey(t), KnownHosts: []string{"git.example.com"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if !rec.contains("ssh-keyscan -T 10 'git.example.com'") {
			t.Errorf("known hosts not scanned: %v", rec.scripts())
		}
		if !rec.contains("rm -f /root/.ssh/id_kuplat") {
			t.Errorf("ssh key not removed: %v", rec.scripts())
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		engine := fakectr.New()
		app := newApp(t, engine, baseConfig(), &fakeDependency{})
		_, err := app.Build(ctx, application.BuildOptions{SSHKey: []byte("not a key")})
		if !errors.Is(err, errdefs.ErrBuild) {
			t.Fatalf("err = %v, want ErrBuild", err)
		}
		if slices.Contains(engine.ImageRefs(), app.CommitImage()) {
			t.Fatalf("invalid key must abort before commit")
		}
	})
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	rec := &execRecorder{}
	engine.ExecFn = rec.fn
	app := newApp(t, engine, baseConfig(), &fakeDependency{})

	if err := app.Deploy(ctx); !errors.Is(err, errdefs.ErrState) {
		t.Fatalf("deploy without container: err = %v, want state error", err)
	}
	if _, err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.Deploy(ctx); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	rec.mu.Lock()
	last := rec.execs[len(rec.execs)-1]
	rec.mu.Unlock()
	if last.User != "web" || !strings.Contains(last.Cmd[2], "php bin/migrate") || !strings.Contains(last.Cmd[2], "cd /app") {
		t.Fatalf("deploy exec = %+v", last)
	}

	rec.fail = func(ctr.ExecSpec) bool { return true }
	if err := app.Deploy(ctx); !errors.Is(err, errdefs.ErrDeploy) {
		t.Fatalf("err = %v, want ErrDeploy", err)
	}
}

func TestUp_BuildsOnceAndDeploys(t *testing.T) {
	ctx := context.Background()
	engine := fakectr.New()
	rec := &execRecorder{}
	engine.ExecFn = rec.fn
	app := newApp(t, engine, baseConfig(), &fakeDependency{})

	if err := app.Up(ctx, application.BuildOptions{}); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if got := engine.CallCount("CommitContainer"); got != 1 {
		t.Fatalf("CommitContainer count = %d, want 1", got)
	}
	deploys := func() int {
		n := 0
		for _, s := range rec.scripts() {
			if strings.Contains(s, "php bin/migrate") {
				n++
			}
		}
		return n
	}
	if deploys() != 1 {
		t.Fatalf("deploy hook ran %d times, want 1", deploys())
	}

	if err := app.Up(ctx, application.BuildOptions{}); err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if engine.CallCount("CommitContainer") != 1 || deploys() != 1 {
		t.Fatalf("second Up on a running app must not rebuild or redeploy")
	}
}

func TestProxyFragment(t *testing.T) {
	cfg := baseConfig()
	deny := false
	cfg.Web.Locations["/assets"] = parser.LocationConfig{
		Root:    "public/assets",
		Expires: "1h",
		Allow:   &deny,
		Rules: map[string]parser.RuleConfig{
			`\.(css|js)$`: {Expires: "7d"},
		},
	}
	app := newApp(t, fakectr.New(), cfg, &fakeDependency{})

	out, err := app.ProxyFragment()
	if err != nil {
		t.Fatalf("ProxyFragment: %v", err)
	}
	conf := string(out)
	for _, want := range []string{
		"listen 80 default_server;",
		`root "/app/web";`,
		"try_files $uri $uri/ @app_index_php;",
		"location @app_index_php {",
		"fastcgi_param SCRIPT_FILENAME $document_root/index.php;",
		"fastcgi_pass 127.0.0.1:8888;",
		`root "/app/public/assets";`,
		"expires 1h;",
		`location ~ "\.(css|js)$" {`,
		"expires 7d;",
		"return 404;",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("fragment missing %q:\n%s", want, conf)
		}
	}
	if strings.Index(conf, "location /assets") > strings.Index(conf, "location @app_index_php") {
		t.Errorf("named locations must follow regular locations:\n%s", conf)
	}
}

func TestProxyFragment_HTTPUpstream(t *testing.T) {
	cfg := baseConfig()
	cfg.Type, cfg.Version = "nodejs", "20"
	cfg.Web.Upstream.Protocol = "http"
	cfg.Web.Commands.Start = "node server.js"
	cfg.Web.Locations = map[string]parser.LocationConfig{"/": {Passthru: parser.Passthru{Enabled: true}}}
	app := newApp(t, fakectr.New(), cfg, &fakeDependency{})

	out, err := app.ProxyFragment()
	if err != nil {
		t.Fatalf("ProxyFragment: %v", err)
	}
	conf := string(out)
	if !strings.Contains(conf, "proxy_pass http://127.0.0.1:8888;") || strings.Contains(conf, "fastcgi_pass") {
		t.Fatalf("unexpected upstream config:\n%s", conf)
	}
	if !strings.Contains(conf, "location @app_root {") {
		t.Fatalf("missing default backend:\n%s", conf)
	}
}

func TestLookup(t *testing.T) {
	for _, typ := range []string{"php", "nodejs", "python", "golang", "ruby"} {
		d, ok := application.Lookup(typ)
		if !ok || d.Images[d.DefaultVersion] == "" {
			t.Errorf("runtime %s missing or without default image", typ)
		}
	}
	php, _ := application.Lookup("php")
	if cmd := php.ExtensionsCommand([]string{"redis", "pdo_mysql"}); !strings.Contains(cmd, "docker-php-ext-install") {
		t.Errorf("php extensions command = %q", cmd)
	}
	node, _ := application.Lookup("nodejs")
	if cmd := node.DependenciesCommand("nodejs", map[string]string{"gulp": "4.0.2", "yarn": "*"}); cmd != "npm install -g 'gulp@4.0.2' 'yarn'" {
		t.Errorf("npm command = %q", cmd)
	}
	if cmd := node.DependenciesCommand("cobol", map[string]string{"x": "1"}); cmd != "" {
		t.Errorf("unsupported manager should yield empty command, got %q", cmd)
	}
}
