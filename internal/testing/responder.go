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

import "github.com/ZaparooProject/go-mfrc522/internal/syncutil"

// Frame is what the simulated chip put on the air for one Transceive.
type Frame struct {
	Data       []byte
	TxLastBits byte // valid bits in the last byte, 0 = 8
	RxAlign    byte
}

// Bits returns the number of bits transmitted.
func (f Frame) Bits() int {
	if len(f.Data) == 0 {
		return 0
	}
	if f.TxLastBits == 0 {
		return len(f.Data) * 8
	}
	return (len(f.Data)-1)*8 + int(f.TxLastBits)
}

// Reply is what the field answers to a Frame.
//
// The zero Reply is silence: the chip timer fires and the host sees a
// timeout. Data is placed in the FIFO exactly as given, so a responder
// answering an anti-collision frame must already align its first byte.
type Reply struct {
	Data []byte
	// LastBits is reported in ControlReg.RxLastBits.
	LastBits byte
	// ErrorReg is OR-ed into ErrorReg (parity, protocol, overflow).
	ErrorReg byte
	// CollisionPos is the 1-based position of the first colliding bit, or 0.
	CollisionPos int
	// NoTimerIRq leaves ComIrqReg untouched on silence, so only the host's
	// own polling budget ends the wait.
	NoTimerIRq bool
}

// Silent reports whether r carries no answer.
func (r Reply) Silent() bool {
	return len(r.Data) == 0 && r.ErrorReg == 0 && r.CollisionPos == 0
}

// Responder models everything on the far side of the antenna.
type Responder interface {
	Respond(f Frame) Reply
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(f Frame) Reply

// Respond implements Responder.
func (fn ResponderFunc) Respond(f Frame) Reply {
	return fn(f)
}

// ScriptedResponder answers frames from a fixed queue of replies and keeps
// every frame it saw. Once the queue is empty it stays silent.
type ScriptedResponder struct {
	replies []Reply
	frames  []Frame
	mu      syncutil.Mutex
}

// NewScriptedResponder creates a responder that plays back replies in order.
func NewScriptedResponder(replies ...Reply) *ScriptedResponder {
	return &ScriptedResponder{replies: replies}
}

// Respond implements Responder.
func (s *ScriptedResponder) Respond(f Frame) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, cloneFrame(f))
	if len(s.replies) == 0 {
		return Reply{}
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r
}

// Push appends replies to the queue.
func (s *ScriptedResponder) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Frames returns a copy of every frame received so far.
func (s *ScriptedResponder) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.frames))
	for i, f := range s.frames {
		out[i] = cloneFrame(f)
	}
	return out
}

// Pending returns the number of replies not yet played.
func (s *ScriptedResponder) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

func cloneFrame(f Frame) Frame {
	f.Data = append([]byte(nil), f.Data...)
	return f
}
