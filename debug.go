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
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

const debugStamp = "15:04:05.000"

// debugSink fans debug lines out to the console and the session log. The
// polling loop and the transport both log, so writes are serialized.
type debugSink struct {
	console io.Writer
	file    io.WriteCloser
	now     func() time.Time
	path    string
	mu      syncutil.Mutex
}

var (
	sink         = &debugSink{console: os.Stdout, now: time.Now}
	debugConsole atomic.Bool
)

func init() {
	for _, key := range []string{"MFRC522_DEBUG", "DEBUG"} {
		if os.Getenv(key) != "" {
			debugConsole.Store(true)
			return
		}
	}
}

// Debugf logs a formatted debug line.
func Debugf(format string, args ...any) {
	sink.emit(fmt.Sprintf(format, args...))
}

// Debugln logs its operands separated by spaces.
func Debugln(args ...any) {
	sink.emit(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// SetDebugEnabled toggles console debug output. The session log, when
// open, receives every line either way.
func SetDebugEnabled(enabled bool) {
	debugConsole.Store(enabled)
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugConsole.Load()
}

func (s *debugSink) emit(msg string) {
	console := debugConsole.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil && !console {
		return
	}
	if s.file != nil {
		_, _ = fmt.Fprintf(s.file, "%s DEBUG: %s\n", s.now().Format(debugStamp), msg)
	}
	if console {
		_, _ = fmt.Fprintf(s.console, "DEBUG: %s\n", msg)
	}
}
