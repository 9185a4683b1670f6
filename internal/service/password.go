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
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// PasswordSalt keys service password derivation.
const PasswordSalt = "kuplat service password v1"

const passwordLength = 32

// DerivePassword returns a stable password for user on serviceName. Changing
// the project entropy or uid changes every derived password.
func DerivePassword(salt, user, serviceName, entropy, uid string) string {
	key := blake3.Sum256([]byte(salt))
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("service: blake3 keyed hasher: " + err.Error())
	}
	_, _ = hasher.Write([]byte(strings.Join([]string{user, serviceName, entropy, uid}, "\x00")))
	return hex.EncodeToString(hasher.Sum(nil))[:passwordLength]
}
