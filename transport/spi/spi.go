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

// Package spi provides the SPI transport for the MFRC522.
//
// The MFRC522 speaks the register framing of mfrc522.Conn natively on SPI
// (datasheet §8.1.2), so the transport is a thin wrapper around a periph
// spi.Conn that classifies errors and owns the port.
package spi

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-mfrc522"
)

const (
	// DefaultFrequency is conservative for long jumper wires. The chip
	// accepts up to 10 MHz.
	DefaultFrequency = 1 * physic.MegaHertz
	// MaxFrequency is the datasheet limit.
	MaxFrequency = 10 * physic.MegaHertz

	mode = spi.Mode0 // CPOL=0, CPHA=0, MSB first
	bits = 8
)

var errFrequency = errors.New("SPI frequency out of range")

// Option configures a Transport.
type Option func(*options)

type options struct {
	freq physic.Frequency
}

// WithFrequency sets the SPI clock.
func WithFrequency(f physic.Frequency) Option {
	return func(o *options) {
		o.freq = f
	}
}

// Transport implements mfrc522.Conn over SPI.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	portName string
}

// New opens portName (e.g. "/dev/spidev0.0" or "SPI0.0") and connects in
// mode 0 with 8-bit words.
func New(portName string, opts ...Option) (*Transport, error) {
	o := options{freq: DefaultFrequency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.freq <= 0 || o.freq > MaxFrequency {
		return nil, fmt.Errorf("%w: %s", errFrequency, o.freq)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(o.freq, mode, bits)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	mfrc522.Debugf("SPI %s connected at %s", portName, o.freq)
	return &Transport{port: port, conn: conn, portName: portName}, nil
}

// NewWithConn wraps an already connected spi.Conn. The caller keeps
// ownership of the port.
func NewWithConn(conn spi.Conn, portName string) *Transport {
	return &Transport{conn: conn, portName: portName}
}

// Tx implements mfrc522.Conn.
func (t *Transport) Tx(w, r []byte) error {
	if t.conn == nil {
		return mfrc522.NewTransportClosedError("SPI tx", t.portName)
	}
	if len(w) != len(r) {
		return fmt.Errorf("SPI tx: write %d bytes, read %d bytes", len(w), len(r))
	}
	if err := t.conn.Tx(w, r); err != nil {
		return mfrc522.NewTransportWriteError("SPI tx", t.portName, err)
	}
	return nil
}

// Close releases the port. Later transfers fail with ErrTransportClosed.
func (t *Transport) Close() error {
	t.conn = nil
	if t.port == nil {
		return nil
	}
	port := t.port
	t.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	return t.conn != nil
}

// Port returns the port name passed to New.
func (t *Transport) Port() string {
	return t.portName
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportSPI
}
