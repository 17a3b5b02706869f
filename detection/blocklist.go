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

package detection

import (
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBlocklist lists USB serial adapters a UART probe must not open.
// Entries are VID:PID in hex; case does not matter.
func DefaultBlocklist() []string {
	return []string{
		// Arduino Uno boards reset when the port opens.
		"2341:0043",
		"2341:0001",
	}
}

func canonicalVIDPID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeVIDPID joins a vendor and product ID, as reported by the OS,
// into blocklist form. Either ID missing gives "".
func NormalizeVIDPID(vid, pid string) string {
	trim := func(id string) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(id)), "0x")
	}
	vid, pid = trim(vid), trim(pid)
	if vid == "" || pid == "" {
		return ""
	}
	return canonicalVIDPID(vid + ":" + pid)
}

// IsBlocked reports whether vidpid appears in blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	want := canonicalVIDPID(vidpid)
	return want != "" && slices.ContainsFunc(blocklist, func(b string) bool {
		return canonicalVIDPID(b) == want
	})
}

// IsPathIgnored reports whether devicePath matches an entry of ignorePaths
// once both are cleaned and case folded; COM port names are not case
// sensitive.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	want := foldPath(devicePath)
	return slices.ContainsFunc(ignorePaths, func(p string) bool {
		return p != "" && foldPath(p) == want
	})
}

func foldPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
