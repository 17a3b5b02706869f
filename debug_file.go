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
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// InitSessionLog opens mfrc522_<timestamp>.log in the working directory and
// routes every debug line there. It returns the path so the caller can tell
// the user where to look.
func InitSessionLog() (string, error) {
	return InitSessionLogIn("")
}

// InitSessionLogIn is InitSessionLog with an explicit directory. An empty
// dir means the working directory. Any open session log is closed first.
func InitSessionLogIn(dir string) (string, error) {
	return sink.open(dir)
}

// CloseSessionLog writes the footer and closes the session log. It is a
// no-op when no log is open.
func CloseSessionLog() error {
	return sink.close()
}

// GetSessionLogPath returns the open session log's path, or "".
func GetSessionLogPath() string {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.path
}

func (s *debugSink) open(dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return "", err
	}

	name := filepath.Join(dir, "mfrc522_"+s.now().Format("20060102_150405")+".log")
	f, err := os.Create(name) //nolint:gosec // name is built from a timestamp
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	s.file = f
	s.path = name
	s.header(f)
	return name, nil
}

func (s *debugSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *debugSink) closeLocked() error {
	if s.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(s.file, "\n%s === Session ended ===\n", s.now().Format(debugStamp))

	err := s.file.Close()
	s.file = nil
	s.path = ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

func (s *debugSink) header(w io.Writer) {
	exe, err := os.Executable()
	if err != nil {
		exe = "unknown"
	}
	fields := []struct{ key, val string }{
		{"Started", s.now().Format(time.RFC3339)},
		{"PID", fmt.Sprint(os.Getpid())},
		{"OS", runtime.GOOS + "/" + runtime.GOARCH},
		{"Go Version", runtime.Version()},
		{"Executable", exe},
		{"Command Line", strings.Join(os.Args, " ")},
		{"Debug Console", fmt.Sprint(debugConsole.Load())},
	}

	_, _ = io.WriteString(w, "=== MFRC522 Debug Session Log ===\n")
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "%s: %s\n", f.key, f.val)
	}
	_, _ = io.WriteString(w, strings.Repeat("=", 34)+"\n\n")
}
