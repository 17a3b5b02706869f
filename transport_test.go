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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
)

func quickRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Microsecond,
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestConnWithRetry_RecoversTransientFailures(t *testing.T) {
	t.Parallel()

	chip := virt.NewVirtualMFRC522(virt.ChipConfig{})
	flaky := virt.NewFlakyConn(chip, virt.FaultConfig{Err: ErrTransportRead, FailFirst: 2})
	conn := NewConnWithRetry(flaky, quickRetry(3))

	device, err := New(conn, nil)
	require.NoError(t, err)

	v, err := device.Version()
	require.NoError(t, err)
	assert.Equal(t, Version2, v)
	assert.Equal(t, 3, flaky.Calls())
	assert.Equal(t, 2, flaky.Failed())
}

func TestConnWithRetry_PermanentFailure(t *testing.T) {
	t.Parallel()

	chip := virt.NewVirtualMFRC522(virt.ChipConfig{})
	flaky := virt.NewFlakyConn(chip, virt.FaultConfig{FailFirst: 5})
	conn := NewConnWithRetry(flaky, quickRetry(3))

	_, err := New(conn, nil)
	require.NoError(t, err)

	err = conn.Tx([]byte{EncodeRead(VersionReg), 0}, make([]byte, 2))
	require.ErrorIs(t, err, virt.ErrInjected)
	assert.Equal(t, 1, flaky.Calls(), "unclassified errors are not retried")
}

func TestConnWithRetry_TypeAndClose(t *testing.T) {
	t.Parallel()

	chip := virt.NewVirtualMFRC522(virt.ChipConfig{})
	conn := NewConnWithRetry(typedChip{chip}, nil)
	assert.Equal(t, TransportMock, conn.Type())
	assert.Equal(t, TransportMock, TypeOf(conn))

	require.NoError(t, conn.Close())
	_, err := chip.ReadRegister(byte(VersionReg))
	require.ErrorIs(t, err, virt.ErrClosed)

	conn.SetRetryConfig(quickRetry(1))
	assert.Equal(t, TransportType(""), TypeOf(chip))
}
