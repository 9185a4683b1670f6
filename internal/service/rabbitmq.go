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

	"github.com/eminwux/kuplat/internal/ctr"
)

const (
	rabbitmqPort = 5672
	rabbitmqUser = "guest"
)

type rabbitmqHandler struct{}

func (rabbitmqHandler) command(*Service) []string { return nil }

func (rabbitmqHandler) env(s *Service) []string {
	return []string{
		"RABBITMQ_DEFAULT_USER=" + rabbitmqUser,
		"RABBITMQ_DEFAULT_PASS=" + s.Password(rabbitmqUser),
	}
}

func (rabbitmqHandler) volumes(*Service) map[string]string {
	return map[string]string{"data": "/var/lib/rabbitmq"}
}

func (rabbitmqHandler) endpoints(*Service) []string { return []string{"rabbitmq"} }

func (rabbitmqHandler) serviceData(s *Service, endpoint string) (Relationship, error) {
	if endpoint == "" {
		endpoint = "rabbitmq"
	}
	return Relationship{
		Rel:      endpoint,
		Scheme:   "amqp",
		Port:     rabbitmqPort,
		Username: rabbitmqUser,
		Password: s.Password(rabbitmqUser),
		Query:    map[string]any{},
	}, nil
}

func (rabbitmqHandler) readinessProbe(*Service) []string {
	return []string{"rabbitmq-diagnostics", "-q", "ping"}
}

func (rabbitmqHandler) provision(ctx context.Context, s *Service) error {
	for _, vhost := range s.cfg.Configuration.Vhosts {
		script := fmt.Sprintf(
			"rabbitmqctl -q list_vhosts | grep -qx '%[1]s' || rabbitmqctl add_vhost '%[1]s'; "+
				"rabbitmqctl set_permissions -p '%[1]s' %[2]s '.*' '.*' '.*'",
			vhost, rabbitmqUser)
		if _, err := s.Exec(ctx, ctr.ExecSpec{Cmd: []string{"sh", "-c", script}}); err != nil {
			return fmt.Errorf("provision %s: %w", s.Name(), err)
		}
	}
	return nil
}
