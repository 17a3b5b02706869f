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

// Package uart provides the UART transport for the MFRC522.
//
// The UART protocol (datasheet §8.1.4) addresses one register per byte:
// a read sends 0x80|addr and the chip answers with the value, a write sends
// addr followed by the value and the chip echoes addr.
package uart

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// DefaultBaudRate is the rate the chip starts with after reset.
const DefaultBaudRate = 9600

const (
	uartRead = 0x80
	regMask  = 0x3F
)

var (
	errReadTimeout  = errors.New("UART read timeout")
	errEchoMismatch = errors.New("UART write echo mismatch")
)

// Option configures a Transport.
type Option func(*options)

type options struct {
	baud int
}

// WithBaudRate overrides DefaultBaudRate. The chip must already be
// running at that rate (SerialSpeedReg).
func WithBaudRate(baud int) Option {
	return func(o *options) {
		o.baud = baud
	}
}

// Transport implements mfrc522.Conn over a serial port.
type Transport struct {
	port     io.ReadWriteCloser
	portName string
	mu       syncutil.Mutex
}

// getReadTimeout returns the per-read timeout. Windows USB-serial drivers
// need longer.
func getReadTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 8N1.
func New(portName string, opts ...Option) (*Transport, error) {
	o := options{baud: DefaultBaudRate}
	for _, opt := range opts {
		opt(&o)
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: o.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(getReadTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to flush UART input: %w", err)
	}

	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an open port. Reads must return (0, nil) once the
// port's read timeout expires, as go.bug.st/serial does.
func NewWithPort(port io.ReadWriteCloser, portName string) *Transport {
	return &Transport{port: port, portName: portName}
}

// Tx implements mfrc522.Conn by translating the SPI address framing.
func (t *Transport) Tx(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return mfrc522.NewTransportClosedError("UART tx", t.portName)
	}
	if len(w) != len(r) {
		return fmt.Errorf("UART tx: write %d bytes, read %d bytes", len(w), len(r))
	}
	clear(r)
	if len(w) == 0 {
		return nil
	}

	reg, read := mfrc522.DecodeAddress(w[0])
	if read {
		return t.readRegs(w, r)
	}
	return t.writeRegs(reg, w[1:])
}

// readRegs sends one read request per address slot and collects the
// answers into r[1:].
func (t *Transport) readRegs(w, r []byte) error {
	n := len(w) - 1
	req := make([]byte, n)
	for i := range n {
		reg, _ := mfrc522.DecodeAddress(w[i])
		req[i] = uartRead | byte(reg)&regMask
	}

	if _, err := t.port.Write(req); err != nil {
		return mfrc522.NewTransportWriteError("UART read request", t.portName, err)
	}
	if err := t.readFull(r[1:]); err != nil {
		return mfrc522.NewTransportReadError("UART read", t.portName, err)
	}
	return nil
}

// writeRegs writes every byte of data to reg and checks each echo.
func (t *Transport) writeRegs(reg mfrc522.Register, data []byte) error {
	addr := byte(reg) & regMask
	req := make([]byte, 0, 2*len(data))
	for _, b := range data {
		req = append(req, addr, b)
	}

	if _, err := t.port.Write(req); err != nil {
		return mfrc522.NewTransportWriteError("UART write "+reg.String(), t.portName, err)
	}

	echo := make([]byte, len(data))
	if err := t.readFull(echo); err != nil {
		return mfrc522.NewTransportReadError("UART echo "+reg.String(), t.portName, err)
	}
	for _, e := range echo {
		if e != addr {
			return mfrc522.NewTransportReadError("UART echo "+reg.String(), t.portName,
				fmt.Errorf("%w: got 0x%02X, want 0x%02X", errEchoMismatch, e, addr))
		}
	}
	return nil
}

// readFull fills buf. A read that returns nothing means the port timeout
// expired.
func (t *Transport) readFull(buf []byte) error {
	const maxInterrupts = 3

	got := 0
	interrupts := 0
	for got < len(buf) {
		n, err := t.port.Read(buf[got:])
		got += n
		switch {
		case err != nil && isInterruptedSystemCall(err) && interrupts < maxInterrupts:
			interrupts++
		case err != nil:
			return fmt.Errorf("read %d of %d bytes: %w", got, len(buf), err)
		case n == 0:
			return fmt.Errorf("%w after %d of %d bytes", errReadTimeout, got, len(buf))
		}
	}
	return nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	port := t.port
	t.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportUART
}
