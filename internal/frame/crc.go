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

// Package frame holds the ISO/IEC 14443-3 type A framing arithmetic shared
// by the driver and the simulated chip: CRC_A, BCC and cascade segments.
package frame

// CRCA computes the ISO/IEC 14443-3 CRC_A of data (polynomial x^16+x^12+x^5+1,
// preset 0x6363, no final inversion). The result is [low, high], the order the
// bytes go on the air.
func CRCA(data []byte) [2]byte {
	crc := uint32(crcPreset)
	for _, bt := range data {
		bt ^= uint8(crc & 0xff)
		bt ^= bt << 4
		b := uint32(bt)
		crc = (crc >> 8) ^ (b << 8) ^ (b << 3) ^ (b >> 4)
	}
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// AppendCRCA appends the CRC_A of data to data.
func AppendCRCA(data []byte) []byte {
	crc := CRCA(data)
	return append(data, crc[0], crc[1])
}

// CheckCRCA reports whether the last two bytes of data are the CRC_A of the
// rest. Frames shorter than three bytes never check.
func CheckCRCA(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	n := len(data) - 2
	crc := CRCA(data[:n])
	return crc[0] == data[n] && crc[1] == data[n+1]
}

// BCC is the block check character of a cascade segment: the XOR of its
// four bytes.
func BCC(segment []byte) byte {
	var bcc byte
	for _, b := range segment {
		bcc ^= b
	}
	return bcc
}
