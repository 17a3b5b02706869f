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
	"context"

	"periph.io/x/conn/v3/gpio"
)

// Conn is a full-duplex byte transport to the chip. Tx clocks w out and
// fills r with the bytes clocked in; len(w) == len(r).
//
// periph's spi.Conn satisfies Conn directly. The I2C and UART transports
// translate the SPI address framing into their own bus protocols.
type Conn interface {
	Tx(w, r []byte) error
}

// ResetPin drives the chip's NRSTPD line. periph's gpio.PinOut satisfies it.
type ResetPin interface {
	Out(l gpio.Level) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a simulated chip for testing
	TransportMock TransportType = "mock"
)

// TypedConn is implemented by transports that can report their bus type.
type TypedConn interface {
	Conn
	Type() TransportType
}

// TypeOf returns the bus type of c, or "" when c does not report one.
func TypeOf(c Conn) TransportType {
	if tc, ok := c.(TypedConn); ok {
		return tc.Type()
	}
	return ""
}

// ConnWithRetry retries failed transfers on a flaky bus.
//
// Only transport errors marked retryable are repeated. A register transfer
// is idempotent except for FIFO reads and writes, so wrap only buses whose
// failures happen before any byte reaches the chip (e.g. a busy I2C bus).
type ConnWithRetry struct {
	conn   Conn
	config *RetryConfig
}

// NewConnWithRetry wraps conn. A nil config uses DefaultRetryConfig.
func NewConnWithRetry(conn Conn, config *RetryConfig) *ConnWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &ConnWithRetry{conn: conn, config: config}
}

// Tx implements Conn.
func (c *ConnWithRetry) Tx(w, r []byte) error {
	return RetryWithConfig(context.Background(), c.config, func() error {
		return c.conn.Tx(w, r)
	})
}

// Type reports the wrapped transport's type.
func (c *ConnWithRetry) Type() TransportType {
	return TypeOf(c.conn)
}

// Close closes the wrapped transport if it can be closed.
func (c *ConnWithRetry) Close() error {
	if closer, ok := c.conn.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// SetRetryConfig replaces the retry policy.
func (c *ConnWithRetry) SetRetryConfig(config *RetryConfig) {
	c.config = config
}
