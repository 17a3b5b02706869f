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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRCA(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want [2]byte
	}{
		{
			name: "empty data is the preset",
			data: []byte{},
			want: [2]byte{0x63, 0x63},
		},
		{
			name: "HLTA",
			data: []byte{0x50, 0x00},
			want: [2]byte{0x57, 0xCD},
		},
		{
			name: "RATS",
			data: []byte{0xE0, 0x50},
			want: [2]byte{0xBC, 0xA5},
		},
		{
			name: "two zero bytes",
			data: []byte{0x00, 0x00},
			want: [2]byte{0xA0, 0x1E},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CRCA(tt.data))
		})
	}
}

func TestAppendCRCA_ChecksBack(t *testing.T) {
	t.Parallel()

	data := AppendCRCA([]byte{0x93, 0x70, 0x01, 0x02, 0x03, 0x04, 0x04})
	require.Len(t, data, SelectFrameLen)
	assert.True(t, CheckCRCA(data))

	data[3] ^= 0x01
	assert.False(t, CheckCRCA(data))
}

func TestCheckCRCA_TooShort(t *testing.T) {
	t.Parallel()

	assert.False(t, CheckCRCA(nil))
	assert.False(t, CheckCRCA([]byte{0x63, 0x63}))
}

func TestBCC(t *testing.T) {
	t.Parallel()

	seg := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	bcc := BCC(seg)
	assert.Equal(t, byte(0xDE^0xAD^0xBE^0xEF), bcc)
	// XOR of the segment and its BCC is always zero.
	assert.Zero(t, BCC(append(seg, bcc)))
}

func FuzzCRCARoundTrip(f *testing.F) {
	f.Add([]byte{0x93, 0x20})
	f.Add([]byte{0x08})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) == 0 {
			return
		}
		framed := AppendCRCA(append([]byte(nil), data...))
		if !CheckCRCA(framed) {
			t.Fatalf("CRC_A of %X does not check", data)
		}
	})
}
