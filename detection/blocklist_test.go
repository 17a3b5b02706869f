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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"1234:5678", "ABCD:EF01"}

	tests := []struct {
		name    string
		vidpid  string
		blocked bool
	}{
		{"exact", "1234:5678", true},
		{"case insensitive", "abcd:ef01", true},
		{"whitespace", "  1234:5678  ", true},
		{"not listed", "9999:9999", false},
		{"partial", "1234:", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.blocked, IsBlocked(tc.vidpid, blocklist))
		})
	}
}

func TestNormalizeVIDPID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1A86:7523", NormalizeVIDPID("1a86", "7523"))
	assert.Equal(t, "0403:6001", NormalizeVIDPID(" 0x0403\n", "0X6001"))
	assert.Empty(t, NormalizeVIDPID("", "7523"))
	assert.Empty(t, NormalizeVIDPID("1a86", ""))
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{"empty ignore list", "/dev/spidev0.0", nil, false},
		{"empty device path", "", []string{"/dev/spidev0.0"}, false},
		{"exact spi", "/dev/spidev0.0", []string{"/dev/spidev0.0"}, true},
		{"exact i2c with address", "/dev/i2c-1:0x28", []string{"/dev/i2c-1:0x28"}, true},
		{"other address", "/dev/i2c-1:0x28", []string{"/dev/i2c-1:0x2C"}, false},
		{"windows port", "COM3", []string{"COM3"}, true},
		{"case insensitive", "com3", []string{"COM3"}, true},
		{"relative components", "/dev/../dev/spidev0.0", []string{"/dev/spidev0.0"}, true},
		{"empty entries skipped", "/dev/ttyUSB0", []string{"", "/dev/ttyUSB0"}, true},
		{"no match", "/dev/spidev0.1", []string{"/dev/spidev0.0", "COM3"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}
