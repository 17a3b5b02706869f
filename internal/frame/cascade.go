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

import "errors"

// ErrUIDLength is returned for UIDs that are not 4, 7 or 10 bytes long.
var ErrUIDLength = errors.New("uid must be 4, 7 or 10 bytes")

// Segments splits uid into its cascade segments. Every level but the last
// starts with the cascade tag and carries three UID bytes.
func Segments(uid []byte) ([][SegmentLen]byte, error) {
	var levels int
	switch len(uid) {
	case 4:
		levels = 1
	case 7:
		levels = 2
	case 10:
		levels = 3
	default:
		return nil, ErrUIDLength
	}

	segs := make([][SegmentLen]byte, levels)
	off := 0
	for i := range segs {
		if i < levels-1 {
			segs[i][0] = CascadeTag
			copy(segs[i][1:], uid[off:off+3])
			off += 3
			continue
		}
		copy(segs[i][:], uid[off:off+4])
	}
	return segs, nil
}

// SegmentBit returns bit pos (0-based, LSB first across bytes) of a
// segment followed by its BCC, i.e. the 40-bit anti-collision answer.
func SegmentBit(seg [SegmentLen]byte, pos int) byte {
	if pos >= SegmentBits {
		return (BCC(seg[:]) >> (pos - SegmentBits)) & 1
	}
	return (seg[pos/8] >> (pos % 8)) & 1
}

// ValidSelect reports whether f is a well-formed 9-byte SELECT frame: NVB
// 0x70, a matching BCC and a matching CRC_A.
func ValidSelect(f []byte) bool {
	if len(f) != SelectFrameLen || f[1] != NVBFull {
		return false
	}
	if BCC(f[2:6]) != f[6] {
		return false
	}
	return CheckCRCA(f)
}
