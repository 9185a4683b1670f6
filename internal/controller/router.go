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

package controller

import (
	v1beta1 "github.com/eminwux/kuplat/pkg/api/model/v1beta1"
)

// RouterStart starts the router when it is not running.
func (b *Exec) RouterStart() (*v1beta1.RouterDoc, error) {
	r, err := b.getRouter()
	if err != nil {
		return nil, err
	}
	l, err := r.Lock()
	if err != nil {
		return nil, err
	}
	err = r.EnsureRunning(b.ctx)
	_ = l.Release()
	if err != nil {
		return nil, err
	}
	return b.RouterStatus()
}

// RouterStop stops the router. Registrations survive and are served again
// on the next start.
func (b *Exec) RouterStop() error {
	r, err := b.getRouter()
	if err != nil {
		return err
	}
	return r.Shutdown(b.ctx)
}

// RouterStatus describes the router.
func (b *Exec) RouterStatus() (*v1beta1.RouterDoc, error) {
	r, err := b.getRouter()
	if err != nil {
		return nil, err
	}
	exists, err := r.Exists(b.ctx)
	if err != nil {
		return nil, err
	}
	st, err := r.Status(b.ctx)
	if err != nil {
		return nil, err
	}
	return routerDoc(st, exists, r.Options()), nil
}

// RouterPurge removes the router with its certificate and every
// registration.
func (b *Exec) RouterPurge(dryRun bool) (*v1beta1.PurgeDoc, error) {
	r, err := b.getRouter()
	if err != nil {
		return nil, err
	}
	report, err := r.Remove(b.ctx, dryRun)
	return purgeDoc("", report), err
}

// RouterRemove removes the registration of the project named by ref, or
// the one at the configured path, without touching its containers.
func (b *Exec) RouterRemove(ref string) error {
	p, err := b.resolveProject(ref)
	if err != nil {
		return err
	}
	return p.Unregister(b.ctx)
}
