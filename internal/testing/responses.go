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

package testing

import "github.com/ZaparooProject/go-mfrc522/internal/frame"

// ATQAReply answers REQA/WUPA with the ATQA for a UID of uidLen bytes.
func ATQAReply(uidLen int) Reply {
	return Reply{Data: ATQA(uidLen)}
}

// ATQA returns the ATQA a MIFARE-style card reports for its UID size:
// bits 7:6 of the first byte encode single, double or triple size.
func ATQA(uidLen int) []byte {
	switch uidLen {
	case 7:
		return []byte{0x44, 0x00}
	case 10:
		return []byte{0x84, 0x00}
	default:
		return []byte{0x04, 0x00}
	}
}

// SAKReply answers a full SELECT with sak and its CRC_A.
func SAKReply(sak byte) Reply {
	return Reply{Data: frame.AppendCRCA([]byte{sak})}
}

// SegmentReply answers a NVB=0x20 anti-collision frame with a complete
// segment and its BCC.
func SegmentReply(seg []byte) Reply {
	data := append([]byte(nil), seg...)
	return Reply{Data: append(data, frame.BCC(seg))}
}

// CollisionReply answers with data and flags a collision at pos.
func CollisionReply(data []byte, pos int) Reply {
	return Reply{Data: append([]byte(nil), data...), CollisionPos: pos}
}

// NAKReply is a 4-bit MIFARE NAK.
func NAKReply() Reply {
	return Reply{Data: []byte{0x00}, LastBits: 4}
}

// DataReply answers with payload followed by its CRC_A.
func DataReply(payload []byte) Reply {
	return Reply{Data: frame.AppendCRCA(append([]byte(nil), payload...))}
}

// TimeoutReply is silence with the chip timer firing.
func TimeoutReply() Reply {
	return Reply{}
}

// HungReply is silence without any interrupt.
func HungReply() Reply {
	return Reply{NoTimerIRq: true}
}
