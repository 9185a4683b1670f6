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

import "context"

const (
	redisPort     = 6379
	memcachedPort = 11211
)

type redisHandler struct {
	persistent bool
}

func (h redisHandler) command(*Service) []string {
	if h.persistent {
		return []string{"redis-server", "--appendonly", "yes", "--dir", "/data"}
	}
	return []string{"redis-server", "--save", "", "--appendonly", "no"}
}

func (redisHandler) env(*Service) []string { return nil }

func (h redisHandler) volumes(*Service) map[string]string {
	if h.persistent {
		return map[string]string{"data": "/data"}
	}
	return nil
}

func (redisHandler) endpoints(*Service) []string { return []string{"redis"} }

func (redisHandler) serviceData(_ *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = "redis"
	}
	return Relationship{Rel: endpoint, Scheme: "redis", Port: redisPort, Query: map[string]any{}}, nil
}

func (redisHandler) readinessProbe(*Service) []string {
	return []string{"redis-cli", "ping"}
}

func (redisHandler) provision(context.Context, *Service) error { return nil }

type memcachedHandler struct{}

func (memcachedHandler) command(*Service) []string { return nil }

func (memcachedHandler) env(*Service) []string { return nil }

func (memcachedHandler) volumes(*Service) map[string]string { return nil }

func (memcachedHandler) endpoints(*Service) []string { return []string{"memcached"} }

func (memcachedHandler) serviceData(_ *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = "memcached"
	}
	return Relationship{Rel: endpoint, Scheme: "memcached", Port: memcachedPort, Query: map[string]any{}}, nil
}

func (memcachedHandler) readinessProbe(*Service) []string {
	return []string{"sh", "-c", "echo version | nc -w 1 127.0.0.1 11211 | grep -q VERSION"}
}

func (memcachedHandler) provision(context.Context, *Service) error { return nil }
