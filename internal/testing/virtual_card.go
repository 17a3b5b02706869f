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

import (
	"encoding/hex"

	"github.com/ZaparooProject/go-mfrc522/internal/frame"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Well-known UIDs used across tests.
var (
	TestUID4  = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	TestUID7  = []byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}
	TestUID10 = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}
)

// CardState is a card's ISO/IEC 14443-3 activation state.
type CardState int

const (
	CardIdle CardState = iota
	CardReady
	CardActive
	CardHalt
)

func (s CardState) String() string {
	switch s {
	case CardIdle:
		return "IDLE"
	case CardReady:
		return "READY"
	case CardActive:
		return "ACTIVE"
	case CardHalt:
		return "HALT"
	default:
		return "UNKNOWN"
	}
}

// VirtualCard is a type A card taking part in activation and
// anti-collision.
type VirtualCard struct {
	segs [][frame.SegmentLen]byte
	UID  []byte
	atqa []byte
	// level is the cascade level (0-based) the card answers while READY.
	level   int
	state   CardState
	mu      syncutil.Mutex
	sak     byte
	present bool
	// badSAKCRC corrupts the CRC_A of every SAK.
	badSAKCRC bool
}

// NewVirtualCard creates a card with a 4, 7 or 10 byte UID and the SAK it
// reports once fully selected. It panics on any other UID length.
func NewVirtualCard(uid []byte, sak byte) *VirtualCard {
	segs, err := frame.Segments(uid)
	if err != nil {
		panic(err)
	}
	return &VirtualCard{
		UID:     append([]byte(nil), uid...),
		segs:    segs,
		atqa:    ATQA(len(uid)),
		sak:     sak,
		present: true,
	}
}

// NewVirtualMifare1K creates a MIFARE Classic 1K (SAK 0x08). A nil uid
// uses TestUID4.
func NewVirtualMifare1K(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestUID4
	}
	return NewVirtualCard(uid, 0x08)
}

// NewVirtualUltralight creates a MIFARE Ultralight / NTAG (SAK 0x00). A nil
// uid uses TestUID7.
func NewVirtualUltralight(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestUID7
	}
	return NewVirtualCard(uid, 0x00)
}

// GetUIDString returns the UID as a hex string
func (c *VirtualCard) GetUIDString() string {
	return hex.EncodeToString(c.UID)
}

// State returns the activation state.
func (c *VirtualCard) State() CardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Present reports whether the card is in the field.
func (c *VirtualCard) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present
}

// Remove takes the card out of the field. It loses power and comes back
// IDLE on Insert.
func (c *VirtualCard) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.present = false
	c.state = CardIdle
	c.level = 0
}

// Insert puts the card back into the field.
func (c *VirtualCard) Insert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.present = true
}

// CorruptSAKCRC makes the card answer SELECT with a wrong CRC_A.
func (c *VirtualCard) CorruptSAKCRC(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.badSAKCRC = on
}

// answer reports whether the card answers REQA (or WUPA when wake is set)
// and moves it to READY if so. An ACTIVE card drops back to IDLE silently.
func (c *VirtualCard) answer(wake bool) bool {
	switch c.state {
	case CardIdle, CardReady:
	case CardHalt:
		if !wake {
			return false
		}
	case CardActive:
		c.state = CardIdle
		return false
	}
	c.state = CardReady
	c.level = 0
	return true
}

// matches reports whether the first n bits of the card's current segment
// plus BCC equal those in sent.
func (c *VirtualCard) matches(sent []byte, n int) bool {
	seg := c.segs[c.level]
	for i := range n {
		if frame.SegmentBit(seg, i) != (sent[i/8]>>(i%8))&1 {
			return false
		}
	}
	return true
}

// selected completes SELECT for the current level and returns the SAK
// frame.
func (c *VirtualCard) selected() []byte {
	sak := c.sak
	if c.level < len(c.segs)-1 {
		sak = frame.SAKCascade
		c.level++
	} else {
		sak &^= frame.SAKCascade
		c.state = CardActive
	}
	resp := frame.AppendCRCA([]byte{sak})
	if c.badSAKCRC {
		resp[2] ^= 0xFF
	}
	return resp
}
