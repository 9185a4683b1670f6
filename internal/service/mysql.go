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
	"strings"

	"github.com/eminwux/kuplat/internal/ctr"
)

const (
	mysqlPort            = 3306
	mysqlDefaultEndpoint = "mysql"
	mysqlRootUser        = "root"
)

type mysqlHandler struct {
	client string
	admin  string
}

func (mysqlHandler) command(*Service) []string { return nil }

func (mysqlHandler) env(s *Service) []string {
	root := s.Password(mysqlRootUser)
	return []string{
		"MARIADB_ROOT_PASSWORD=" + root,
		"MYSQL_ROOT_PASSWORD=" + root,
	}
}

func (mysqlHandler) volumes(*Service) map[string]string {
	return map[string]string{"data": "/var/lib/mysql"}
}

func (mysqlHandler) endpoints(s *Service) []string {
	return s.endpointNames(mysqlDefaultEndpoint)
}

func (mysqlHandler) serviceData(s *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = mysqlDefaultEndpoint
	}
	ep, err := s.endpointConfig(endpoint, mysqlDefaultEndpoint)
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{
		Rel:      endpoint,
		Scheme:   "mysql",
		Port:     mysqlPort,
		Username: endpoint,
		Password: s.Password(endpoint),
		Path:     ep.DefaultSchema,
		Query:    map[string]any{"is_master": true},
	}, nil
}

func (h mysqlHandler) readinessProbe(s *Service) []string {
	return []string{
		h.admin, "ping", "--protocol=tcp", "-h", "127.0.0.1",
		"-u" + mysqlRootUser, "-p" + s.Password(mysqlRootUser), "--silent",
	}
}

func (h mysqlHandler) provision(ctx context.Context, s *Service) error {
	sql := mysqlProvisionSQL(s)
	_, err := s.Exec(ctx, ctr.ExecSpec{
		Cmd: []string{h.client, "--protocol=tcp", "-h", "127.0.0.1", "-u" + mysqlRootUser, "-e", sql},
		Env: []string{"MYSQL_PWD=" + s.Password(mysqlRootUser)},
	})
	if err != nil {
		return fmt.Errorf("provision %s: %w", s.Name(), err)
	}
	return nil
}

// mysqlGrants maps a privilege level to MySQL grants.
var mysqlGrants = map[string]string{
	"admin": "ALL PRIVILEGES",
	"rw":    "SELECT, INSERT, UPDATE, DELETE, CREATE TEMPORARY TABLES, EXECUTE, LOCK TABLES",
	"ro":    "SELECT, EXECUTE, SHOW VIEW",
}

func mysqlProvisionSQL(s *Service) string {
	var b strings.Builder
	for _, schema := range s.schemas() {
		fmt.Fprintf(&b, "CREATE DATABASE IF NOT EXISTS `%s`;\n", schema)
	}
	for _, endpoint := range s.Endpoints() {
		ep, err := s.endpointConfig(endpoint, mysqlDefaultEndpoint)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s';\n", endpoint, s.Password(endpoint))
		fmt.Fprintf(&b, "ALTER USER '%s'@'%%' IDENTIFIED BY '%s';\n", endpoint, s.Password(endpoint))
		schemas := make([]string, 0, len(ep.Privileges))
		for schema := range ep.Privileges {
			schemas = append(schemas, schema)
		}
		sort.Strings(schemas)
		for _, schema := range schemas {
			grant, ok := mysqlGrants[ep.Privileges[schema]]
			if !ok {
				grant = mysqlGrants["ro"]
			}
			fmt.Fprintf(&b, "GRANT %s ON `%s`.* TO '%s'@'%%';\n", grant, schema, endpoint)
		}
	}
	b.WriteString("FLUSH PRIVILEGES;\n")
	return b.String()
}
