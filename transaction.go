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

// maxTransaction is the longest full-duplex transfer issued in one Tx: a
// 64-byte FIFO burst plus its address byte.
const maxTransaction = 65

// txBuffer frames one full-duplex transfer. Writes accumulate between begin
// and end, end clocks them out in a single Tx, and the bytes clocked in are
// then available through read.
//
// The buffer is not reentrant. Calling methods out of order is a programming
// error and panics.
type txBuffer struct {
	w      [maxTransaction]byte
	r      [maxTransaction]byte
	n      int
	depth  int
	filled bool
}

func (t *txBuffer) begin() {
	if t.depth != 0 {
		panic("mfrc522: nested transaction")
	}
	t.depth = 1
	t.n = 0
	t.filled = false
}

func (t *txBuffer) writeByte(b byte) {
	if t.depth != 1 {
		panic("mfrc522: write outside transaction")
	}
	if t.n >= maxTransaction {
		panic("mfrc522: transaction overflow")
	}
	t.w[t.n] = b
	t.n++
}

func (t *txBuffer) write(p []byte) {
	if t.depth != 1 {
		panic("mfrc522: write outside transaction")
	}
	if t.n+len(p) > maxTransaction {
		panic("mfrc522: transaction overflow")
	}
	t.n += copy(t.w[t.n:], p)
}

// end clocks out the accumulated bytes. The transaction is closed even if
// the transfer fails.
func (t *txBuffer) end(c Conn) error {
	if t.depth != 1 {
		panic("mfrc522: end without begin")
	}
	t.depth = 0
	err := c.Tx(t.w[:t.n], t.r[:t.n])
	t.filled = err == nil
	return err
}

// readByte returns the last byte clocked in.
func (t *txBuffer) readByte() byte {
	return t.read(1)[0]
}

// read returns the last n bytes clocked in. The slice aliases the buffer and
// is only valid until the next begin.
func (t *txBuffer) read(n int) []byte {
	if t.depth != 0 || !t.filled {
		panic("mfrc522: read before transaction end")
	}
	if n > t.n {
		panic("mfrc522: read past transaction")
	}
	return t.r[t.n-n : t.n]
}

// len reports how many bytes the current or last transaction carries.
func (t *txBuffer) len() int {
	return t.n
}
