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

// Package metrics holds the prometheus collectors recorded during one
// invocation. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kuplat"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var readinessBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300}

// Metrics holds every collector.
type Metrics struct {
	EngineOperations *prometheus.CounterVec
	ContainerStarts  *prometheus.CounterVec
	Builds           *prometheus.CounterVec
	ReadinessWait    *prometheus.HistogramVec
	RouterReloads    prometheus.Counter
	registry         *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		EngineOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Container engine mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		ContainerStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_starts_total",
			Help:      "Container starts by kind and whether a create was needed",
		}, []string{"kind", "created"}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Application builds by outcome",
		}, []string{"outcome"}),
		ReadinessWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for services to become ready",
			Buckets:   readinessBuckets,
		}, []string{"type"}),
		RouterReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_reloads_total",
			Help:      "Router restarts performed to apply configuration",
		}),
		registry: registry,
	}
	registry.MustRegister(m.EngineOperations, m.ContainerStarts, m.Builds, m.ReadinessWait, m.RouterReloads)
	return m
}

// Registry exposes the registry for tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveEngineOp counts one engine mutation.
func (m *Metrics) ObserveEngineOp(op string, err error) {
	if m == nil {
		return
	}
	m.EngineOperations.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveStart counts one container start.
func (m *Metrics) ObserveStart(kind string, created bool) {
	if m == nil {
		return
	}
	m.ContainerStarts.WithLabelValues(kind, strconv.FormatBool(created)).Inc()
}

// ObserveBuild counts one application build.
func (m *Metrics) ObserveBuild(err error) {
	if m == nil {
		return
	}
	m.Builds.WithLabelValues(outcome(err)).Inc()
}

// ObserveReadiness records how long a service took to become ready.
func (m *Metrics) ObserveReadiness(serviceType string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReadinessWait.WithLabelValues(serviceType).Observe(d.Seconds())
}

// ObserveRouterReload counts one router restart.
func (m *Metrics) ObserveRouterReload() {
	if m == nil {
		return
	}
	m.RouterReloads.Inc()
}

// WriteTextfile writes every collector to path in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
