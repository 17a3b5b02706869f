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

package polling

import (
	"sync/atomic"
	"time"
)

// Metrics are operational counters for a Session.
type Metrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Cycles that failed with an error
	CardsDetected   int64         // Cycles that selected a card
	CallbackErrors  int64         // Callbacks that returned an error or panicked
	LastPollLatency time.Duration // Duration of the last cycle
}

type sessionMetrics struct {
	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	cardsDetected   atomic.Int64
	callbackErrors  atomic.Int64
	lastPollLatency atomic.Int64
}

func (m *sessionMetrics) recordPoll(latency time.Duration, err error, detected bool) {
	m.pollCycles.Add(1)
	m.lastPollLatency.Store(int64(latency))
	switch {
	case detected:
		m.cardsDetected.Add(1)
	case err != nil:
		m.pollErrors.Add(1)
	}
}

func (m *sessionMetrics) snapshot() Metrics {
	return Metrics{
		PollCycles:      m.pollCycles.Load(),
		PollErrors:      m.pollErrors.Load(),
		CardsDetected:   m.cardsDetected.Load(),
		CallbackErrors:  m.callbackErrors.Load(),
		LastPollLatency: time.Duration(m.lastPollLatency.Load()),
	}
}
