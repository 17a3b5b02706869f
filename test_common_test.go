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

package mfrc522

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
)

// newTestDevice creates a device on a simulated chip. The chip advances the
// mock clock, if any, on every transfer.
func newTestDevice(t *testing.T, cfg virt.ChipConfig, opts ...Option) (*Device, *virt.VirtualMFRC522) {
	t.Helper()
	chip := virt.NewVirtualMFRC522(cfg)
	if cfg.Clock != nil {
		opts = append([]Option{WithClock(cfg.Clock)}, opts...)
	}
	device, err := New(chip, nil, opts...)
	require.NoError(t, err)
	return device, chip
}

// newFieldDevice creates an initialised device with cards in its field.
func newFieldDevice(t *testing.T, cards ...*virt.VirtualCard) (*Device, *virt.VirtualMFRC522, *virt.Field) {
	t.Helper()
	field := virt.NewField(cards...)
	device, chip := newTestDevice(t, virt.ChipConfig{Responder: field})
	require.NoError(t, device.Init())
	return device, chip, field
}

// newMockClock returns a mock clock set to a non-zero time.
func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return mock
}

// echoConn returns every written byte in the same slot of the read buffer.
type echoConn struct {
	last []byte
	err  error
}

func (e *echoConn) Tx(w, r []byte) error {
	e.last = append([]byte{}, w...)
	if e.err != nil {
		return e.err
	}
	copy(r, w)
	return nil
}
