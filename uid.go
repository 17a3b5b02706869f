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

const hexChars = "0123456789ABCDEF"

// MaxUIDLen is the longest UID a card can report (triple size).
const MaxUIDLen = 10

// UID is a card's unique identifier as resolved by Select.
//
// The zero value is ready to pass to Select. After a successful Select Size
// is 4, 7 or 10; after a failed one the contents are partial and must not be
// used.
type UID struct {
	value [MaxUIDLen]byte
	// Size is the number of valid bytes in the UID.
	Size byte
	// SAK is the select acknowledge byte of the last cascade level.
	SAK byte
}

// NewUID creates a UID from known bytes, e.g. to seed Select with a partial
// UID. Bytes beyond MaxUIDLen are silently truncated.
func NewUID(b []byte) UID {
	var u UID
	u.Size = byte(copy(u.value[:], b))
	return u
}

// Bytes returns the valid UID bytes. The returned slice is a copy.
func (u *UID) Bytes() []byte {
	return append([]byte(nil), u.value[:u.len()]...)
}

// At returns byte i of the UID buffer. It panics if i is out of range.
func (u *UID) At(i int) byte {
	return u.value[i]
}

// Reset returns u to its zero value.
func (u *UID) Reset() {
	*u = UID{}
}

func (u *UID) len() int {
	return min(int(u.Size), MaxUIDLen)
}

// Equal reports whether two UIDs have identical size and content.
func (u *UID) Equal(other *UID) bool {
	if u.Size != other.Size {
		return false
	}
	for i := range u.len() {
		if u.value[i] != other.value[i] {
			return false
		}
	}
	return true
}

// String returns the UID as colon-separated uppercase hex (e.g. "04:A3:2B:1C").
// Returns an empty string for a zero-length UID.
func (u *UID) String() string {
	n := u.len()
	if n == 0 {
		return ""
	}

	buf := make([]byte, n*3-1)
	for i := range n {
		if i > 0 {
			buf[i*3-1] = ':'
		}

		buf[i*3] = hexChars[u.value[i]>>4]
		buf[i*3+1] = hexChars[u.value[i]&0x0F]
	}

	return string(buf)
}

// Type classifies the card from its SAK byte.
func (u *UID) Type() PICCType {
	return PICCTypeFromSAK(u.SAK)
}

// PICCType is the card family reported through SAK.
type PICCType int

const (
	PICCTypeUnknown PICCType = iota
	PICCTypeISO14443_4
	PICCTypeISO18092
	PICCTypeMifareMini
	PICCTypeMifare1K
	PICCTypeMifare4K
	PICCTypeMifareUL
	PICCTypeMifarePlus
	PICCTypeTNP3XXX
	PICCTypeNotComplete
)

// PICCTypeFromSAK decodes a SAK byte. Bit 0x04 still set means the UID was
// not fully resolved. DESFire answers SAK 0x20 like any ISO/IEC 14443-4
// card; telling it apart needs RATS, which is out of reach here.
func PICCTypeFromSAK(sak byte) PICCType {
	switch sak & 0x7F {
	case 0x04:
		return PICCTypeNotComplete
	case 0x09:
		return PICCTypeMifareMini
	case 0x08:
		return PICCTypeMifare1K
	case 0x18:
		return PICCTypeMifare4K
	case 0x00:
		return PICCTypeMifareUL
	case 0x10, 0x11:
		return PICCTypeMifarePlus
	case 0x01:
		return PICCTypeTNP3XXX
	case 0x20:
		return PICCTypeISO14443_4
	case 0x40:
		return PICCTypeISO18092
	default:
		return PICCTypeUnknown
	}
}

func (t PICCType) String() string {
	switch t {
	case PICCTypeISO14443_4:
		return "PICC compliant with ISO/IEC 14443-4"
	case PICCTypeISO18092:
		return "PICC compliant with ISO/IEC 18092 (NFC)"
	case PICCTypeMifareMini:
		return "MIFARE Mini, 320 bytes"
	case PICCTypeMifare1K:
		return "MIFARE 1KB"
	case PICCTypeMifare4K:
		return "MIFARE 4KB"
	case PICCTypeMifareUL:
		return "MIFARE Ultralight or Ultralight C"
	case PICCTypeMifarePlus:
		return "MIFARE Plus"
	case PICCTypeTNP3XXX:
		return "MIFARE TNP3XXX"
	case PICCTypeNotComplete:
		return "SAK indicates UID is not complete"
	default:
		return "Unknown type"
	}
}
