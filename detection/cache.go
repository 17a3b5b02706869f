// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package detection

import (
	"slices"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/benbjohnson/clock"
)

// detectionCache remembers the latest non-empty find per bus so repeated
// DetectAll calls do not re-probe hardware.
type detectionCache struct {
	clock clock.Clock
	found map[string][]DeviceInfo
	at    map[string]time.Time
	mu    syncutil.RWMutex
}

var cache = newDetectionCache(clock.New())

func newDetectionCache(c clock.Clock) *detectionCache {
	return &detectionCache{
		clock: c,
		found: map[string][]DeviceInfo{},
		at:    map[string]time.Time{},
	}
}

func (c *detectionCache) lookup(transport string, ttl time.Duration) ([]DeviceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stamp, ok := c.at[transport]
	if !ok || c.clock.Since(stamp) > ttl {
		return nil, false
	}
	return slices.Clone(c.found[transport]), true
}

func (c *detectionCache) store(transport string, devices []DeviceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.found[transport] = slices.Clone(devices)
	c.at[transport] = c.clock.Now()
}

// forget drops the given transports, or all of them when none are named.
func (c *detectionCache) forget(transports ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(transports) == 0 {
		clear(c.found)
		clear(c.at)
		return
	}
	for _, t := range transports {
		delete(c.found, t)
		delete(c.at, t)
	}
}

func getCached(transport string, ttl time.Duration) ([]DeviceInfo, bool) {
	return cache.lookup(transport, ttl)
}

func setCached(transport string, devices []DeviceInfo) { cache.store(transport, devices) }

func clearCache() { cache.forget() }

func clearCacheForTransport(transport string) { cache.forget(transport) }
