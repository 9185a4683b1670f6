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
	postgresPort            = 5432
	postgresDefaultEndpoint = "postgresql"
	postgresSuperuser       = "postgres"
)

type postgresHandler struct{}

func (postgresHandler) command(*Service) []string { return nil }

func (postgresHandler) env(s *Service) []string {
	return []string{
		"POSTGRES_USER=" + postgresSuperuser,
		"POSTGRES_PASSWORD=" + s.Password(postgresSuperuser),
		"PGDATA=/var/lib/postgresql/data/pgdata",
	}
}

func (postgresHandler) volumes(*Service) map[string]string {
	return map[string]string{"data": "/var/lib/postgresql/data"}
}

func (postgresHandler) endpoints(s *Service) []string {
	return s.endpointNames(postgresDefaultEndpoint)
}

func (postgresHandler) serviceData(s *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = postgresDefaultEndpoint
	}
	ep, err := s.endpointConfig(endpoint, postgresDefaultEndpoint)
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{
		Rel:      endpoint,
		Scheme:   "pgsql",
		Port:     postgresPort,
		Username: endpoint,
		Password: s.Password(endpoint),
		Path:     ep.DefaultSchema,
		Query:    map[string]any{"is_master": true},
	}, nil
}

func (postgresHandler) readinessProbe(*Service) []string {
	return []string{"pg_isready", "-U", postgresSuperuser, "-h", "127.0.0.1"}
}

func (postgresHandler) provision(ctx context.Context, s *Service) error {
	env := []string{"PGPASSWORD=" + s.Password(postgresSuperuser), "PGHOST=127.0.0.1", "PGUSER=" + postgresSuperuser}
	for _, schema := range s.schemas() {
		script := fmt.Sprintf(
			"psql -tAc \"SELECT 1 FROM pg_database WHERE datname = '%[1]s'\" | grep -q 1 || createdb \"%[1]s\"",
			schema)
		if _, err := s.Exec(ctx, ctr.ExecSpec{Cmd: []string{"sh", "-c", script}, Env: env}); err != nil {
			return fmt.Errorf("provision %s: %w", s.Name(), err)
		}
	}
	for _, stmt := range postgresRoleStatements(s) {
		_, err := s.Exec(ctx, ctr.ExecSpec{
			Cmd: []string{"psql", "-v", "ON_ERROR_STOP=1", "-tAc", stmt},
			Env: env,
		})
		if err != nil {
			return fmt.Errorf("provision %s: %w", s.Name(), err)
		}
	}
	return nil
}

// postgresRoleStatements creates one login role per endpoint and grants it
// access to its schemas.
func postgresRoleStatements(s *Service) []string {
	var stmts []string
	for _, endpoint := range s.Endpoints() {
		ep, err := s.endpointConfig(endpoint, postgresDefaultEndpoint)
		if err != nil {
			continue
		}
		pw := s.Password(endpoint)
		stmts = append(stmts, fmt.Sprintf(
			"DO $$ BEGIN CREATE ROLE \"%[1]s\" LOGIN PASSWORD '%[2]s'; "+
				"EXCEPTION WHEN duplicate_object THEN ALTER ROLE \"%[1]s\" LOGIN PASSWORD '%[2]s'; END $$;",
			endpoint, pw))

		schemas := make([]string, 0, len(ep.Privileges))
		for schema := range ep.Privileges {
			schemas = append(schemas, schema)
		}
		sort.Strings(schemas)
		for _, schema := range schemas {
			stmts = append(stmts, postgresGrant(ep.Privileges[schema], schema, endpoint))
		}
	}
	return stmts
}

func postgresGrant(level, schema, role string) string {
	switch strings.ToLower(level) {
	case "admin":
		return fmt.Sprintf("ALTER DATABASE \"%s\" OWNER TO \"%s\";", schema, role)
	case "rw":
		return fmt.Sprintf("GRANT CONNECT, TEMPORARY ON DATABASE \"%s\" TO \"%s\";", schema, role)
	default:
		return fmt.Sprintf("GRANT CONNECT ON DATABASE \"%s\" TO \"%s\";", schema, role)
	}
}
