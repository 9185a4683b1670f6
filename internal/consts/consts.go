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

package consts

const (
	// NamePrefix prefixes every container, network and volume the tool creates.
	NamePrefix = "kuplat_"

	// CommitRepository is the image repository for committed containers.
	CommitRepository = "kuplat-commit"

	// RouterContainerName is the shared reverse proxy container.
	RouterContainerName = "kuplat_router"
	// RouterConfigDir is where per-project configuration lives inside the router.
	RouterConfigDir = "/etc/nginx/conf.d"
	// RouterCertDir holds the router's TLS material.
	RouterCertDir = "/etc/nginx/certs"
)

// Labels attached to every engine object.
const (
	LabelRoot            = "kuplat"
	LabelProjectUID      = "kuplat.project-uid"
	LabelProjectShortUID = "kuplat.project-short-uid"
	LabelName            = "kuplat.name"
	LabelKind            = "kuplat.kind"
	LabelProjectEntropy  = "kuplat.project-entropy"
	LabelProjectConfig   = "kuplat.project-config"
	LabelConfigDigest    = "kuplat.config-digest"
	LabelVolume          = "kuplat.volume"
)

// Kinds stored under LabelKind.
const (
	KindService     = "service"
	KindApplication = "application"
	KindRouter      = "router"
	KindProject     = "project"
)

// Project layout on disk.
const (
	PlatformDir         = ".platform"
	AppConfigFile       = ".platform.app.yaml"
	ApplicationsFile    = "applications.yaml"
	ServicesFile        = "services.yaml"
	RoutesFile          = "routes.yaml"
	LocalStateDir       = "local"
	ProjectStateFile    = "project.json"
	VariablesStateFile  = "variables.json"
	LockFile            = "lock"
	ShortUIDLength      = 6
	DefaultBranch       = "local"
	AppDir              = "/app"
	SourceMountPath     = "/mnt/src"
	AppWebUser          = "web"
	AppUpstreamPort     = 8888
	AppHTTPPort         = 80
	AppNginxConfigPath  = "/etc/nginx/http.d/default.conf"
	SSHKeyContainerPath = "/root/.ssh/id_kuplat"
)
