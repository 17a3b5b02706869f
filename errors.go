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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Transport failures. Read and write failures are worth another attempt;
// the rest mean the device is gone.
var (
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportClosed = errors.New("transport is closed")
	ErrDeviceClosed    = errors.New("device is closed")
	ErrResetFailed     = errors.New("hardware reset failed")
	ErrNotResponding   = errors.New("chip did not leave power down")
)

// ErrorType classifies a TransportError for the retry layer.
type ErrorType int

const (
	ErrorTypeTransient ErrorType = iota
	ErrorTypePermanent
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError records which bus operation failed and on which port.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Port + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError builds a TransportError. Transient and timeout errors
// are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTransportWriteError wraps cause under ErrTransportWrite.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, joinCause(ErrTransportWrite, cause), ErrorTypeTransient)
}

// NewTransportReadError wraps cause under ErrTransportRead.
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, joinCause(ErrTransportRead, cause), ErrorTypeTransient)
}

// NewTransportClosedError reports use of a closed bus.
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// IsRetryable reports whether repeating the failed operation may succeed.
// A Status decides by itself; otherwise the TransportError flag or a read
// or write sentinel does.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var s Status
	if errors.As(err, &s) {
		return s.Retryable()
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return errors.Is(err, ErrTransportRead) || errors.Is(err, ErrTransportWrite)
}

var fatalErrors = []error{
	ErrTransportClosed,
	ErrDeviceClosed,
	io.EOF,
	io.ErrClosedPipe,
	syscall.EIO,
	syscall.ENXIO,
	syscall.ENODEV,
}

// IsFatal reports whether the reader is gone and polling should stop. An
// unplugged USB-UART bridge shows up as EIO or ENODEV.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
