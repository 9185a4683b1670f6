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

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eminwux/kuplat/internal/ctr"
	"github.com/eminwux/kuplat/internal/errdefs"
)

// ReadinessPolicy bounds how long and how often a readiness probe is retried.
type ReadinessPolicy struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout bounds a single probe; it never exceeds Timeout.
	AttemptTimeout time.Duration
}

// DefaultReadinessPolicy is used when nothing is configured.
func DefaultReadinessPolicy() ReadinessPolicy {
	return ReadinessPolicy{
		Timeout:         2 * time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		AttemptTimeout:  30 * time.Second,
	}
}

func (p ReadinessPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultReadinessPolicy().Timeout
	}
	return p.Timeout
}

func (p ReadinessPolicy) attemptTimeout() time.Duration {
	attempt := p.AttemptTimeout
	if attempt <= 0 {
		attempt = DefaultReadinessPolicy().AttemptTimeout
	}
	return min(attempt, p.timeout())
}

func (p ReadinessPolicy) backOff() *backoff.ExponentialBackOff {
	def := DefaultReadinessPolicy()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = def.InitialInterval
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = def.MaxInterval
	}
	b.MaxElapsedTime = p.timeout()
	b.Reset()
	return b
}

// WaitReady polls the type's in-container probe until it succeeds. The whole
// wait and every single probe are bounded; it gives up with
// ErrReadinessTimeout once the policy's timeout elapses, or early with a
// state error if the container stops running.
func (s *Service) WaitReady(ctx context.Context, policy ReadinessPolicy) error {
	probe := s.desc.handler.readinessProbe(s)
	if len(probe) == 0 {
		return nil
	}

	timeout := policy.timeout()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	attempts := 0
	operation := func() error {
		attempts++
		attemptCtx, cancelAttempt := context.WithTimeout(waitCtx, policy.attemptTimeout())
		defer cancelAttempt()
		_, err := s.Exec(attemptCtx, ctr.ExecSpec{Cmd: probe})
		if errors.Is(err, errdefs.ErrState) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(policy.backOff(), waitCtx))
	elapsed := time.Since(started)
	if err == nil {
		s.metrics.ObserveReadiness(s.desc.Type, elapsed)
		s.Logger().DebugContext(ctx, "service ready", "service", s.Name(), "attempts", attempts, "elapsed", elapsed)
		return nil
	}
	if errors.Is(err, errdefs.ErrState) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s after %s (%d attempts): %w",
		errdefs.ErrReadinessTimeout, s.Name(), timeout, attempts, err)
}
