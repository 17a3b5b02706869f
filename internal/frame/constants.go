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

const crcPreset = 0x6363

// Short frame and anti-collision constants.
const (
	// ShortFrameBits is the bit length of REQA, WUPA and the like.
	ShortFrameBits = 7
	// CascadeTag prefixes a cascade segment whose UID continues at the next level.
	CascadeTag = 0x88
	// SegmentLen is the number of UID-or-CT bytes in one cascade segment.
	SegmentLen = 4
	// SegmentBits is the bit length of a segment without BCC.
	SegmentBits = SegmentLen * 8
	// SelectFrameLen is SEL, NVB, four segment bytes, BCC and CRC_A.
	SelectFrameLen = 9
	// NVBFull is the NVB of a SELECT carrying all 40 bits.
	NVBFull = 0x70
	// SAKCascade is set in a SAK while the UID is not complete.
	SAKCascade = 0x04
)
