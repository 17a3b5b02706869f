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
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// testEnv is a session polling a simulated chip with cards in its field.
type testEnv struct {
	session *Session
	device  *mfrc522.Device
	chip    *virt.VirtualMFRC522
	field   *virt.Field
	events  *recorder
}

// testConfig polls every 100ms and drops a card after 300ms unseen.
func testConfig() *Config {
	return &Config{
		PollInterval:         100 * time.Millisecond,
		CardRemovalTimeout:   300 * time.Millisecond,
		MaxConsecutiveErrors: 3,
	}
}

func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return mock
}

// newTestEnv builds an initialised reader. A nil clk uses the wall clock.
func newTestEnv(t *testing.T, clk clock.Clock, cfg *Config, cards ...*virt.VirtualCard) *testEnv {
	t.Helper()
	return newTestEnvWithResponder(t, clk, cfg, virt.NewField(cards...))
}

func newTestEnvWithResponder(t *testing.T, clk clock.Clock, cfg *Config, responder virt.Responder) *testEnv {
	t.Helper()

	chip := virt.NewVirtualMFRC522(virt.ChipConfig{Responder: responder})
	var opts []mfrc522.Option
	if clk != nil {
		opts = append(opts, mfrc522.WithClock(clk))
	}
	device, err := mfrc522.New(chip, nil, opts...)
	require.NoError(t, err)
	require.NoError(t, device.Init())

	if cfg == nil {
		cfg = testConfig()
	}
	env := &testEnv{
		session: NewSession(device, cfg),
		device:  device,
		chip:    chip,
		events:  &recorder{},
	}
	env.field, _ = responder.(*virt.Field)
	env.events.attach(env.session)
	t.Cleanup(func() { _ = env.session.Close() })
	return env
}

// recorder collects session callbacks.
type recorder struct {
	detected []string
	changed  []string
	mu       sync.Mutex
	removed  int
}

func (r *recorder) attach(s *Session) {
	s.SetOnCardDetected(func(card *mfrc522.DetectedCard) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.detected = append(r.detected, card.UID.String())
		return nil
	})
	s.SetOnCardChanged(func(card *mfrc522.DetectedCard) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changed = append(r.changed, card.UID.String())
		return nil
	})
	s.SetOnCardRemoved(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.removed++
	})
}

func (r *recorder) Detected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.detected...)
}

func (r *recorder) Changed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...)
}

func (r *recorder) Removed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed
}
