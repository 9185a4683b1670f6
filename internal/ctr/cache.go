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

package ctr

// storeNetwork caches a network id by name.
func (c *dockerClient) storeNetwork(name, id string) {
	c.networksMu.Lock()
	defer c.networksMu.Unlock()
	if c.networks == nil {
		c.networks = make(map[string]string)
	}
	c.networks[name] = id
}

// loadNetwork returns a cached network id.
func (c *dockerClient) loadNetwork(name string) (string, bool) {
	c.networksMu.RLock()
	defer c.networksMu.RUnlock()
	id, ok := c.networks[name]
	return id, ok
}

// dropNetwork removes a network from the cache.
func (c *dockerClient) dropNetwork(name string) {
	c.networksMu.Lock()
	defer c.networksMu.Unlock()
	if c.networks != nil {
		delete(c.networks, name)
	}
}
