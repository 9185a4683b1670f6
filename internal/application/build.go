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

package application

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/eminwux/kuplat/internal/consts"
	"github.com/eminwux/kuplat/internal/errdefs"
	"golang.org/x/crypto/ssh"
)

// builtMarker exists in every committed application image.
const builtMarker = consts.AppDir + "/.kuplat-built"

// basePackages are installed into every application image.
var basePackages = []string{"nginx", "rsync", "git", "openssh-client", "curl", "bash"}

// BuildOptions configures one build.
type BuildOptions struct {
	// SSHKey is a PEM private key installed for the duration of the build.
	SSHKey []byte
	// KnownHosts are scanned into known_hosts while the key is installed.
	KnownHosts []string
}

// BuildResult describes a finished build.
type BuildResult struct {
	ImageID string
	// HookError is the tolerated build hook failure, if any.
	HookError error
}

// Build recreates the container from the base image, installs runtime
// dependencies, copies the source, runs the build hook and commits the
// result. The container is left running from the new commit image.
func (a *Application) Build(ctx context.Context, opts BuildOptions) (BuildResult, error) {
	result, err := a.build(ctx, opts)
	a.metrics.ObserveBuild(err)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", errdefs.ErrBuild, a.Name(), err)
	}
	return result, nil
}

func (a *Application) build(ctx context.Context, opts BuildOptions) (BuildResult, error) {
	var result BuildResult
	if !a.hasSource {
		return result, errdefs.ErrProjectPathNeeded
	}
	logger := a.Logger()
	logger.InfoContext(ctx, "building application", "app", a.Name(), "type", a.TypeVersion())

	if err := a.StartFromBase(ctx); err != nil {
		return result, err
	}
	for _, step := range a.setupSteps(ctx) {
		logger.DebugContext(ctx, "build step", "app", a.Name(), "command", step)
		if _, err := a.RunCommand(ctx, step, "root"); err != nil {
			return result, err
		}
	}
	if err := a.writeRuntimeConfig(ctx); err != nil {
		return result, err
	}

	if len(opts.SSHKey) > 0 {
		if err := a.installSSHKey(ctx, opts); err != nil {
			return result, err
		}
	}
	hookErr := a.copySourceAndRunHook(ctx)
	if len(opts.SSHKey) > 0 {
		if err := a.removeSSHKey(ctx); err != nil {
			return result, errors.Join(hookErr, err)
		}
	}
	if hookErr != nil {
		var cmdErr *errdefs.CommandError
		if !a.desc.ToleratesHookFailure || !errors.As(hookErr, &cmdErr) {
			return result, hookErr
		}
		logger.WarnContext(ctx, "build hook failed, continuing", "app", a.Name(), "error", hookErr)
		result.HookError = hookErr
	}

	finish := fmt.Sprintf("chown -R %[1]s:%[1]s %[2]s && touch %[3]s", consts.AppWebUser, consts.AppDir, builtMarker)
	if _, err := a.RunCommand(ctx, finish, "root"); err != nil {
		return result, err
	}
	id, err := a.Commit(ctx)
	if err != nil {
		return result, err
	}
	result.ImageID = id

	if err = a.Restart(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// setupSteps installs OS packages, the web user, runtime extensions and
// language dependencies.
func (a *Application) setupSteps(ctx context.Context) []string {
	pkgs := append(append([]string{}, basePackages...), a.desc.Packages...)
	steps := []string{
		"apk add --no-cache " + strings.Join(pkgs, " "),
		fmt.Sprintf("id %[1]s >/dev/null 2>&1 || adduser -D -h %[2]s -s /bin/sh %[1]s", consts.AppWebUser, consts.AppDir),
		"mkdir -p " + consts.AppDir + " /run/nginx",
	}
	if cmd := a.desc.ExtensionsCommand(a.cfg.Runtime.Extensions); cmd != "" {
		steps = append(steps, cmd)
	}
	managers := make([]string, 0, len(a.cfg.Dependencies))
	for manager := range a.cfg.Dependencies {
		managers = append(managers, manager)
	}
	sort.Strings(managers)
	for _, manager := range managers {
		cmd := a.desc.DependenciesCommand(manager, a.cfg.Dependencies[manager])
		if cmd == "" {
			a.Logger().WarnContext(ctx, "unsupported dependency manager, skipping", "app", a.Name(), "manager", manager)
			continue
		}
		steps = append(steps, cmd)
	}
	return steps
}

// copySourceAndRunHook syncs the source into /app, keeping mounts intact,
// and runs the build hook.
func (a *Application) copySourceAndRunHook(ctx context.Context) error {
	excludes := []string{"--exclude=.git", "--exclude=" + path.Join(consts.PlatformDir, consts.LocalStateDir)}
	mounts := make([]string, 0, len(a.cfg.Mounts))
	for mountPath := range a.cfg.Mounts {
		mounts = append(mounts, mountPath)
	}
	sort.Strings(mounts)
	for _, m := range mounts {
		excludes = append(excludes, "--exclude=/"+strings.Trim(m, "/"))
	}
	sync := fmt.Sprintf("rsync -a --delete %s %s/ %s/", strings.Join(excludes, " "), a.sourceDir(), consts.AppDir)
	if _, err := a.RunCommand(ctx, sync, "root"); err != nil {
		return err
	}

	hook := strings.TrimSpace(a.cfg.Hooks.Build)
	if hook == "" {
		return nil
	}
	a.Logger().InfoContext(ctx, "running build hook", "app", a.Name())
	_, err := a.RunCommand(ctx, "set -e\ncd "+consts.AppDir+"\n"+hook, "root")
	return err
}

const sshConfig = `Host *
    IdentityFile ` + consts.SSHKeyContainerPath + `
    StrictHostKeyChecking accept-new
`

// installSSHKey validates and installs the build key.
func (a *Application) installSSHKey(ctx context.Context, opts BuildOptions) error {
	signer, err := ssh.ParsePrivateKey(opts.SSHKey)
	if err != nil {
		return fmt.Errorf("parse ssh key: %w", err)
	}
	a.Logger().InfoContext(ctx, "installing build ssh key", "app", a.Name(),
		"fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))

	if _, err = a.RunCommand(ctx, "mkdir -p /root/.ssh && chmod 700 /root/.ssh", "root"); err != nil {
		return err
	}
	if err = a.UploadFile(ctx, opts.SSHKey, consts.SSHKeyContainerPath, 0o600); err != nil {
		return err
	}
	if err = a.UploadFile(ctx, []byte(sshConfig), "/root/.ssh/config", 0o600); err != nil {
		return err
	}
	for _, host := range opts.KnownHosts {
		scan := fmt.Sprintf("ssh-keyscan -T 10 %s >> /root/.ssh/known_hosts 2>/dev/null", shellQuote(host))
		if _, err = a.RunCommand(ctx, scan, "root"); err != nil {
			a.Logger().WarnContext(ctx, "ssh-keyscan failed", "host", host, "error", err)
		}
	}
	return nil
}

func (a *Application) removeSSHKey(ctx context.Context) error {
	_, err := a.RunCommand(ctx, "rm -f "+consts.SSHKeyContainerPath+" /root/.ssh/config", "root")
	return err
}

// Deploy runs the deploy hook as the web user in /app.
func (a *Application) Deploy(ctx context.Context) error {
	hook := strings.TrimSpace(a.cfg.Hooks.Deploy)
	if hook == "" {
		return nil
	}
	a.Logger().InfoContext(ctx, "running deploy hook", "app", a.Name())
	if _, err := a.RunCommand(ctx, "set -e\ncd "+consts.AppDir+"\n"+hook, consts.AppWebUser); err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrDeploy, a.Name(), err)
	}
	return nil
}
