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
	"bytes"

	"github.com/ZaparooProject/go-mfrc522/internal/frame"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// PICC commands the field understands.
const (
	piccReqA   = 0x26
	piccWupA   = 0x52
	piccSelCL1 = 0x93
	piccSelCL2 = 0x95
	piccSelCL3 = 0x97
	piccHltA   = 0x50
)

// Field is a set of virtual cards sharing one RF field. Answers from
// several cards are combined the way the air does it: a bit where cards
// disagree is a collision, and the chip reports the first one.
type Field struct {
	cards []*VirtualCard
	mu    syncutil.Mutex
}

// NewField creates a field holding cards.
func NewField(cards ...*VirtualCard) *Field {
	return &Field{cards: cards}
}

// Add puts another card into the field.
func (f *Field) Add(c *VirtualCard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = append(f.cards, c)
}

// RemoveAll empties the field.
func (f *Field) RemoveAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = nil
}

// Respond implements Responder.
func (f *Field) Respond(fr Frame) Reply {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(fr.Data) == 0 {
		return Reply{}
	}

	cards := f.present()
	defer func() {
		for _, c := range cards {
			c.mu.Unlock()
		}
	}()

	cmd := fr.Data[0]
	switch {
	case len(fr.Data) == 1 && fr.TxLastBits == frame.ShortFrameBits && (cmd == piccReqA || cmd == piccWupA):
		return request(cards, cmd == piccWupA)
	case len(fr.Data) >= 2 && (cmd == piccSelCL1 || cmd == piccSelCL2 || cmd == piccSelCL3):
		return selectLevel(cards, int(cmd-piccSelCL1)/2, fr)
	case len(fr.Data) == 4 && cmd == piccHltA && frame.CheckCRCA(fr.Data):
		for _, c := range cards {
			if c.state == CardActive {
				c.state = CardHalt
			}
		}
		return Reply{}
	default:
		for _, c := range cards {
			if c.state == CardActive || c.state == CardReady {
				c.state = CardIdle
			}
		}
		return Reply{}
	}
}

// present locks and returns the cards currently in the field. The caller
// unlocks them.
func (f *Field) present() []*VirtualCard {
	var out []*VirtualCard
	for _, c := range f.cards {
		c.mu.Lock()
		if !c.present {
			c.mu.Unlock()
			continue
		}
		out = append(out, c)
	}
	return out
}

func request(cards []*VirtualCard, wake bool) Reply {
	var answers [][]byte
	for _, c := range cards {
		if c.answer(wake) {
			answers = append(answers, c.atqa)
		}
	}
	return combine(answers, 0)
}

func selectLevel(cards []*VirtualCard, level int, fr Frame) Reply {
	var ready []*VirtualCard
	for _, c := range cards {
		if c.state == CardReady && c.level == level {
			ready = append(ready, c)
		}
	}

	if fr.Data[1] == frame.NVBFull {
		if !frame.ValidSelect(fr.Data) {
			return Reply{}
		}
		var answers [][]byte
		for _, c := range ready {
			if bytes.Equal(c.segs[level][:], fr.Data[2:6]) {
				answers = append(answers, c.selected())
			}
		}
		return combine(answers, 0)
	}

	nvb := fr.Data[1]
	known := (int(nvb>>4)-2)*8 + int(nvb&0x0F)
	if known < 0 || known >= frame.SegmentBits+8 || len(fr.Data) < 2+(known+7)/8 {
		return Reply{}
	}

	var answers [][]byte
	for _, c := range ready {
		if c.matches(fr.Data[2:], known) {
			answers = append(answers, segmentAnswer(c.segs[level]))
		}
	}
	return combine(answers, known)
}

// segmentAnswer is the 40-bit anti-collision answer: segment and BCC.
func segmentAnswer(seg [frame.SegmentLen]byte) []byte {
	return append(seg[:], frame.BCC(seg[:]))
}

// combine overlays answers bit by bit starting at bit skip. Bits below
// skip belong to the host and are returned as zero, bytes before skip/8
// are not returned at all. At the first disagreement the collision bit
// reads 1 and every later bit reads 0.
func combine(answers [][]byte, skip int) Reply {
	if len(answers) == 0 {
		return Reply{}
	}

	total := len(answers[0]) * 8
	start := skip / 8
	out := make([]byte, len(answers[0])-start)
	collision := 0

	for i := skip; i < total; i++ {
		ones := 0
		for _, a := range answers {
			ones += int((a[i/8] >> (i % 8)) & 1)
		}
		if ones > 0 && ones < len(answers) {
			collision = i + 1
			out[i/8-start] |= 1 << (i % 8)
			break
		}
		if ones > 0 {
			out[i/8-start] |= 1 << (i % 8)
		}
	}

	return Reply{Data: out, CollisionPos: collision}
}
