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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBuffer_RecordAndWrap(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	tb := newTraceBuffer(mock, "spi", "/dev/spidev0.0", 8)
	tb.RecordTX([]byte{0xEE, 0x00}, "read VersionReg")
	mock.Add(3 * time.Millisecond)
	tb.RecordRX([]byte{0x00, 0x92}, "read VersionReg")

	te := GetTrace(tb.WrapError(StatusTimeout))
	require.NotNil(t, te)
	assert.ErrorIs(t, te, StatusTimeout)
	assert.Equal(t, "spi", te.Transport)
	assert.Equal(t, "/dev/spidev0.0", te.Port)
	require.Len(t, te.Trace, 2)
	assert.Equal(t, TraceTX, te.Trace[0].Direction)
	assert.Equal(t, TraceRX, te.Trace[1].Direction)
	assert.Equal(t, 3*time.Millisecond, te.Trace[1].Timestamp.Sub(te.Trace[0].Timestamp))
}

func TestTraceBuffer_RecordCopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("i2c", "1-0028", 4)
	buf := []byte{0x09, 0x26}
	tb.RecordTX(buf, "")
	buf[1] = 0xFF

	assert.Equal(t, []byte{0x09, 0x26}, tb.Entries()[0].Data)
}

func TestTraceBuffer_Ring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		depth   int
		records int
		want    []byte
	}{
		{name: "partial", depth: 4, records: 2, want: []byte{0, 1}},
		{name: "exactly full", depth: 3, records: 3, want: []byte{0, 1, 2}},
		{name: "wrapped", depth: 3, records: 5, want: []byte{2, 3, 4}},
		{name: "wrapped twice", depth: 2, records: 7, want: []byte{5, 6}},
		{name: "default depth", depth: 0, records: 20, want: []byte{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := NewTraceBuffer("spi", "test", tt.depth)
			for i := range tt.records {
				tb.RecordTX([]byte{byte(i)}, "")
			}

			got := make([]byte, 0, tb.Len())
			for _, e := range tb.Entries() {
				got = append(got, e.Data[0])
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), tb.Len())
		})
	}
}

func TestTraceBuffer_Clear(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("spi", "test", 2)
	for range 3 {
		tb.RecordTX([]byte{0x01}, "")
	}
	tb.Clear()
	assert.Zero(t, tb.Len())
	assert.Empty(t, tb.Entries())

	tb.RecordRX([]byte{0x02}, "")
	assert.Equal(t, 1, tb.Len())
}

func TestTraceBuffer_WrapNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewTraceBuffer("spi", "test", 1).WrapError(nil))
}

func TestTraceableError_FormatTrace(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "/dev/ttyUSB0", 4)
	tb.RecordTX([]byte{0x01, 0x0C}, "write CommandReg")
	tb.RecordRX([]byte{0x00, 0x00}, "")

	assert.Equal(t,
		"[uart:/dev/ttyUSB0] Wire trace (2 entries):\n"+
			"  > 01 0C (write CommandReg)\n"+
			"  < 00 00\n",
		GetTrace(tb.WrapError(errors.New("x"))).FormatTrace())

	empty := &TraceableError{Err: errors.New("x"), Transport: "spi", Port: "p"}
	assert.Equal(t, "[spi:p] (no trace data)", empty.FormatTrace())
}

func TestTraceEntry_String(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	e := TraceEntry{Timestamp: at, Direction: TraceRX, Data: []byte{0x04, 0x00}, Note: "ATQA"}
	assert.Equal(t, "[03:04:05.006] RX: 04 00 (ATQA)", e.String())

	e.Note = ""
	assert.Equal(t, "[03:04:05.006] RX: 04 00", e.String())
}

func TestHexDump(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(empty)", hexDump(nil))
	assert.Equal(t, "DE AD BE EF", hexDump([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

	long := make([]byte, 40)
	got := hexDump(long)
	assert.Contains(t, got, "... (40 bytes total)")
	assert.Len(t, got, len("00")*32+31+len(" ... (40 bytes total)"))
}

func TestGetTrace_Untraced(t *testing.T) {
	t.Parallel()
	assert.Nil(t, GetTrace(errors.New("plain")))
}
