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
)

// Status is the outcome of a protocol operation. Operations return nil for
// StatusOK and exactly one of the other values otherwise, so expected
// hardware conditions such as timeouts and collisions can be checked with
// errors.Is or StatusOf instead of string matching.
type Status uint8

const (
	// StatusOK means the operation completed.
	StatusOK Status = iota
	// StatusNoRoom means the receive buffer is smaller than the FIFO contents.
	StatusNoRoom
	// StatusMifareNack means the card answered with a 4-bit NAK.
	StatusMifareNack
	// StatusCollision means several cards answered at once.
	StatusCollision
	// StatusCRCMismatch means a CRC_A check on received data failed.
	StatusCRCMismatch
	// StatusTimeout means the polling budget expired or the chip timer fired.
	StatusTimeout
	// StatusError means the chip flagged a protocol, parity or buffer error.
	StatusError
	// StatusInvalid means the caller passed an out-of-range argument.
	StatusInvalid
	// StatusInternalError means the card or chip violated the protocol.
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoRoom:
		return "no room"
	case StatusMifareNack:
		return "mifare nack"
	case StatusCollision:
		return "collision"
	case StatusCRCMismatch:
		return "crc mismatch"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	case StatusInvalid:
		return "invalid argument"
	case StatusInternalError:
		return "internal error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) Error() string {
	return "mfrc522: " + s.String()
}

// Retryable reports whether repeating the operation may succeed.
func (s Status) Retryable() bool {
	switch s {
	case StatusTimeout, StatusCollision, StatusError:
		return true
	default:
		return false
	}
}

// StatusOf classifies err. A nil error is StatusOK and transport failures
// are StatusError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusError
}
