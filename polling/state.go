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
	"time"

	"github.com/benbjohnson/clock"
)

// CardDetectionState is where a Session stands with the card in the field.
type CardDetectionState int

const (
	StateIdle CardDetectionState = iota
	StateCardDetected
	// StateReading lasts while a detection callback runs; the removal
	// timer is parked meanwhile.
	StateReading
)

var detectionStateNames = [...]string{
	StateIdle:         "idle",
	StateCardDetected: "detected",
	StateReading:      "reading",
}

func (s CardDetectionState) String() string {
	if s < 0 || int(s) >= len(detectionStateNames) {
		return "unknown"
	}
	return detectionStateNames[s]
}

// CardState is the Session's view of the field.
type CardState struct {
	LastSeenTime  time.Time
	ReadStartTime time.Time
	// RemovalTimer fires OnCardRemoved unless the card is seen again.
	RemovalTimer   *clock.Timer
	LastUID        string
	LastType       string
	DetectionState CardDetectionState
	Present        bool
}

// safeTimerStop stops timer, draining C if it already fired. AfterFunc
// timers have a nil C.
func safeTimerStop(timer *clock.Timer) {
	if timer == nil || timer.Stop() || timer.C == nil {
		return
	}
	select {
	case <-timer.C:
	default:
	}
}

func (cs *CardState) stopRemovalTimer() {
	safeTimerStop(cs.RemovalTimer)
	cs.RemovalTimer = nil
}

// TransitionToReading parks the removal timer while callbacks run.
func (cs *CardState) TransitionToReading(now time.Time) {
	cs.stopRemovalTimer()
	cs.DetectionState = StateReading
	cs.ReadStartTime = now
}

// TransitionToDetected stamps a sighting and re-arms the removal timer
// to call onRemoved after timeout.
func (cs *CardState) TransitionToDetected(c clock.Clock, timeout time.Duration, onRemoved func()) {
	cs.stopRemovalTimer()
	cs.DetectionState = StateCardDetected
	cs.LastSeenTime = c.Now()
	cs.RemovalTimer = c.AfterFunc(timeout, onRemoved)
}

// TransitionToIdle forgets the card.
func (cs *CardState) TransitionToIdle() {
	cs.stopRemovalTimer()
	*cs = CardState{}
}

// sameCard reports whether uid is the card already present.
func (cs *CardState) sameCard(uid string) bool {
	return cs.Present && cs.LastUID == uid
}

func (cs *CardState) remember(uid, cardType string) {
	cs.Present = true
	cs.LastUID = uid
	cs.LastType = cardType
}
