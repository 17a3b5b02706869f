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
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// TraceDirection tells whether a traced transfer went to or came from the
// chip.
type TraceDirection string

const (
	TraceTX TraceDirection = "TX"
	TraceRX TraceDirection = "RX"
)

// TraceEntry is one side of a bus transfer.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

func (e TraceEntry) String() string {
	s := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format(debugStamp), e.Direction, hexDump(e.Data))
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// TraceableError carries the bus transfers leading up to a failure. Use
// GetTrace or errors.As to reach it:
//
//	if te := mfrc522.GetTrace(err); te != nil {
//		log.Print(te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string { return e.Err.Error() }

func (e *TraceableError) Unwrap() error { return e.Err }

// FormatTrace renders the trace one transfer per line, '>' for TX and '<'
// for RX.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		arrow := '>'
		if entry.Direction == TraceRX {
			arrow = '<'
		}
		fmt.Fprintf(&sb, "  %c %s", arrow, hexDump(entry.Data))
		if entry.Note != "" {
			fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// GetTrace returns the TraceableError in err's chain, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

const hexDumpLimit = 32

// hexDump prints up to hexDumpLimit bytes as spaced hex.
func hexDump(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	shown := data[:min(len(data), hexDumpLimit)]
	var sb strings.Builder
	for i, b := range shown {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	if len(shown) < len(data) {
		fmt.Fprintf(&sb, " ... (%d bytes total)", len(data))
	}
	return sb.String()
}

const defaultTraceDepth = 16

// TraceBuffer keeps the last few transfers of one device in a ring.
type TraceBuffer struct {
	clock     clock.Clock
	transport string
	port      string
	ring      []TraceEntry
	next      int
	full      bool
}

// NewTraceBuffer returns a ring holding depth entries, or 16 when depth
// is not positive.
func NewTraceBuffer(transport, port string, depth int) *TraceBuffer {
	return newTraceBuffer(clock.New(), transport, port, depth)
}

func newTraceBuffer(clk clock.Clock, transport, port string, depth int) *TraceBuffer {
	if depth <= 0 {
		depth = defaultTraceDepth
	}
	return &TraceBuffer{
		clock:     clk,
		transport: transport,
		port:      port,
		ring:      make([]TraceEntry, depth),
	}
}

// RecordTX notes bytes clocked out to the chip.
func (tb *TraceBuffer) RecordTX(data []byte, note string) { tb.record(TraceTX, data, note) }

// RecordRX notes bytes clocked in from the chip.
func (tb *TraceBuffer) RecordRX(data []byte, note string) { tb.record(TraceRX, data, note) }

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	tb.ring[tb.next] = TraceEntry{
		Timestamp: tb.clock.Now(),
		Direction: dir,
		Note:      note,
		Data:      append([]byte(nil), data...),
	}
	tb.next++
	if tb.next == len(tb.ring) {
		tb.next = 0
		tb.full = true
	}
}

// Entries returns the recorded transfers, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	if !tb.full {
		return append([]TraceEntry(nil), tb.ring[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.ring))
	out = append(out, tb.ring[tb.next:]...)
	return append(out, tb.ring[:tb.next]...)
}

// WrapError attaches a snapshot of the ring to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear drops every entry.
func (tb *TraceBuffer) Clear() {
	clear(tb.ring)
	tb.next = 0
	tb.full = false
}

// Len returns the number of entries held.
func (tb *TraceBuffer) Len() int {
	if tb.full {
		return len(tb.ring)
	}
	return tb.next
}
