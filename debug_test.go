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

//nolint:paralleltest // swaps the package debug sink
package mfrc522

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

var debugEpoch = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

// captureDebug installs a sink writing to in-memory buffers for the
// duration of the test.
func captureDebug(t *testing.T, console bool) (stdout *bytes.Buffer, logFile *bufferCloser) {
	t.Helper()
	prevSink, prevConsole := sink, debugConsole.Load()
	stdout, logFile = &bytes.Buffer{}, &bufferCloser{}
	sink = &debugSink{
		console: stdout,
		file:    logFile,
		path:    "memory.log",
		now:     func() time.Time { return debugEpoch },
	}
	debugConsole.Store(console)
	t.Cleanup(func() {
		sink = prevSink
		debugConsole.Store(prevConsole)
	})
	return stdout, logFile
}

func TestDebug_Routing(t *testing.T) {
	tests := []struct {
		log         func()
		name        string
		wantLog     string
		wantConsole string
		console     bool
	}{
		{
			name:    "debugf to session log only",
			log:     func() { Debugf("REQA -> ATQA %04X", 0x0044) },
			wantLog: "09:26:53.589 DEBUG: REQA -> ATQA 0044\n",
		},
		{
			name:    "debugln joins operands",
			log:     func() { Debugln("cascade", 2, "done") },
			wantLog: "09:26:53.589 DEBUG: cascade 2 done\n",
		},
		{
			name:        "console enabled",
			console:     true,
			log:         func() { Debugf("SAK %02X", 0x08) },
			wantLog:     "09:26:53.589 DEBUG: SAK 08\n",
			wantConsole: "DEBUG: SAK 08\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, logFile := captureDebug(t, tt.console)
			tt.log()
			assert.Equal(t, tt.wantLog, logFile.String())
			assert.Equal(t, tt.wantConsole, stdout.String())
		})
	}
}

func TestDebug_NoSinkIsSilent(t *testing.T) {
	stdout, _ := captureDebug(t, false)
	sink.file = nil

	assert.NotPanics(t, func() {
		Debugf("dropped %d", 1)
		Debugln("dropped", 2)
	})
	assert.Empty(t, stdout.String())
}

func TestSetDebugEnabled(t *testing.T) {
	captureDebug(t, false)

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}

func TestDebug_ConcurrentWritersKeepLinesWhole(t *testing.T) {
	_, logFile := captureDebug(t, false)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				Debugf("writer %d line %d", w, i)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(logFile.String(), "\n"), "\n")
	assert.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Regexp(t, `^09:26:53\.589 DEBUG: writer \d+ line \d+$`, line)
	}
}
