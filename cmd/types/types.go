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

package types

type ctxKey int

const (
	// CtxLogger holds the *slog.Logger for the running command.
	CtxLogger ctxKey = iota
	// CtxLevelVar holds the **slog.LevelVar backing the logger.
	CtxLevelVar
	// CtxHandler holds the slog.Handler backing the logger.
	CtxHandler
)
