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
	"fmt"
	"sort"
)

// handler implements one service type.
type handler interface {
	command(s *Service) []string
	env(s *Service) []string
	volumes(s *Service) map[string]string
	endpoints(s *Service) []string
	serviceData(s *Service, endpoint string) (Relationship, error)
	readinessProbe(s *Service) []string
	provision(ctx context.Context, s *Service) error
}

// Descriptor is a registered service type.
type Descriptor struct {
	Type           string
	Images         map[string]string
	DefaultVersion string
	Group          Group
	handler        handler
}

// Versions lists the supported versions in ascending order.
func (d Descriptor) Versions() []string {
	out := make([]string, 0, len(d.Images))
	for v := range d.Images {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

var registry = map[string]Descriptor{}

// register adds a type and its aliases. Registering twice is a programming error.
func register(d Descriptor, aliases ...string) {
	for _, name := range append([]string{d.Type}, aliases...) {
		if _, dup := registry[name]; dup {
			panic(fmt.Sprintf("service type %q registered twice", name))
		}
		registry[name] = d
	}
}

// Lookup returns the descriptor registered for typ.
func Lookup(typ string) (Descriptor, bool) {
	d, ok := registry[typ]
	return d, ok
}

// Types lists every registered type name, aliases included.
func Types() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// images builds a version to image map from a reference format.
func images(format string, versions ...string) map[string]string {
	out := make(map[string]string, len(versions))
	for _, v := range versions {
		out[v] = fmt.Sprintf(format, v)
	}
	return out
}

func init() {
	register(Descriptor{
		Type:           "mariadb",
		Images:         images("docker.io/library/mariadb:%s", "10.4", "10.5", "10.6", "10.11", "11.4"),
		DefaultVersion: "10.11",
		Group:          GroupPreAppA,
		handler:        mysqlHandler{client: "mariadb", admin: "mariadb-admin"},
	}, "mysql")
	register(Descriptor{
		Type:           "oracle-mysql",
		Images:         images("docker.io/library/mysql:%s", "5.7", "8.0", "8.4"),
		DefaultVersion: "8.0",
		Group:          GroupPreAppA,
		handler:        mysqlHandler{client: "mysql", admin: "mysqladmin"},
	})
	register(Descriptor{
		Type:           "postgresql",
		Images:         images("docker.io/library/postgres:%s-alpine", "12", "13", "14", "15", "16"),
		DefaultVersion: "16",
		Group:          GroupPreAppA,
		handler:        postgresHandler{},
	})
	register(Descriptor{
		Type:           "redis",
		Images:         images("docker.io/library/redis:%s-alpine", "6.2", "7.0", "7.2"),
		DefaultVersion: "7.2",
		Group:          GroupPreAppA,
		handler:        redisHandler{},
	})
	register(Descriptor{
		Type:           "redis-persistent",
		Images:         images("docker.io/library/redis:%s-alpine", "6.2", "7.0", "7.2"),
		DefaultVersion: "7.2",
		Group:          GroupPreAppA,
		handler:        redisHandler{persistent: true},
	})
	register(Descriptor{
		Type:           "memcached",
		Images:         images("docker.io/library/memcached:%s-alpine", "1.6"),
		DefaultVersion: "1.6",
		Group:          GroupPreAppA,
		handler:        memcachedHandler{},
	})
	register(Descriptor{
		Type:           "solr",
		Images:         images("docker.io/library/solr:%s", "8.11", "9.4", "9.6"),
		DefaultVersion: "9.6",
		Group:          GroupPreAppA,
		handler:        solrHandler{},
	})
	register(Descriptor{
		Type:           "elasticsearch",
		Images:         images("docker.io/library/elasticsearch:%s", "7.17.22", "8.14.3"),
		DefaultVersion: "8.14.3",
		Group:          GroupPreAppA,
		handler:        elasticsearchHandler{},
	})
	register(Descriptor{
		Type:           "rabbitmq",
		Images:         images("docker.io/library/rabbitmq:%s-management-alpine", "3.12", "3.13"),
		DefaultVersion: "3.13",
		Group:          GroupPreAppA,
		handler:        rabbitmqHandler{},
	})
	register(Descriptor{
		Type:           "varnish",
		Images:         images("docker.io/library/varnish:%s", "6.0", "7.4", "7.5"),
		DefaultVersion: "7.5",
		Group:          GroupPostAppA,
		handler:        varnishHandler{},
	})
}
