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

import (
	"errors"

	"github.com/ZaparooProject/go-mfrc522/internal/frame"
)

// RequestA sends REQA and returns the ATQA. Only cards in the IDLE state
// answer. Several cards with different ATQAs give StatusCollision.
func (d *Device) RequestA() ([2]byte, error) {
	return d.requestOrWakeup(PICCReqA)
}

// WakeupA sends WUPA and returns the ATQA. Cards in IDLE and HALT answer.
func (d *Device) WakeupA() ([2]byte, error) {
	return d.requestOrWakeup(PICCWupA)
}

func (d *Device) requestOrWakeup(cmd byte) ([2]byte, error) {
	var atqa [2]byte

	if err := d.clearBits(CollReg, valuesAfterColl); err != nil {
		return atqa, err
	}

	validBits := byte(frame.ShortFrameBits)
	n, err := d.Transceive([]byte{cmd}, atqa[:], &validBits, 0, false)
	if err != nil {
		return atqa, err
	}
	if n != len(atqa) || validBits != 0 {
		Debugf("ATQA: %d bytes, %d valid bits in last byte", n, validBits)
		return atqa, StatusError
	}
	return atqa, nil
}

// Select runs anti-collision and SELECT until the UID of one card is
// complete, cascading through up to three levels.
//
// validBits is the number of UID bits already known from uid (0 for a
// fresh selection). On success uid.Size is 4, 7 or 10 and uid.SAK is the
// final SAK. When several cards answer, the card whose UID has a 1 at the
// first colliding bit wins.
func (d *Device) Select(uid *UID, validBits int) error {
	if validBits < 0 || validBits > 8*MaxUIDLen {
		return StatusInvalid
	}

	if err := d.clearBits(CollReg, valuesAfterColl); err != nil {
		return err
	}

	// SEL, NVB, four UID-or-CT bytes, BCC, CRC_A.
	var buf [frame.SelectFrameLen]byte

	level := 1
	for {
		if level > maxCascades {
			return StatusInternalError
		}
		var uidIndex int
		var useCascadeTag bool
		switch level {
		case 1:
			buf[0] = PICCSelCL1
			uidIndex = 0
			useCascadeTag = validBits != 0 && uid.Size > 4
		case 2:
			buf[0] = PICCSelCL2
			uidIndex = 3
			useCascadeTag = validBits != 0 && uid.Size > 7
		default:
			buf[0] = PICCSelCL3
			uidIndex = 6
		}

		known := max(validBits-8*uidIndex, 0)

		index := 2
		if useCascadeTag {
			buf[index] = PICCCT
			index++
		}
		if nbytes := (known + 7) / 8; nbytes > 0 {
			limit := frame.SegmentLen
			if useCascadeTag {
				limit--
			}
			nbytes = min(nbytes, limit)
			copy(buf[index:index+nbytes], uid.value[uidIndex:uidIndex+nbytes])
		}
		if useCascadeTag {
			known += 8
		}

		var (
			resp    []byte
			respLen int
			rxBits  byte
		)
		for {
			var txLastBits byte
			var used int
			if known >= frame.SegmentBits {
				buf[1] = nvbFullUID
				buf[6] = frame.BCC(buf[2:6])
				crc, err := d.CalculateCRC(buf[:7])
				if err != nil {
					return err
				}
				buf[7], buf[8] = crc[0], crc[1]
				used = frame.SelectFrameLen
				resp = buf[6:]
			} else {
				txLastBits = byte(known % 8)
				index = 2 + known/8
				buf[1] = byte(index<<4) | txLastBits
				used = index
				if txLastBits != 0 {
					used++
				}
				resp = buf[index:]
			}

			rxAlign := txLastBits
			if err := d.writeReg(BitFramingReg, rxAlign<<4|txLastBits); err != nil {
				return err
			}

			rxBits = txLastBits
			n, err := d.Transceive(buf[:used], resp, &rxBits, rxAlign, false)
			respLen = n

			if errors.Is(err, StatusCollision) {
				coll, err := d.readReg(CollReg)
				if err != nil {
					return err
				}
				if coll&collPosNotValid != 0 {
					return StatusCollision
				}
				pos := int(coll & collPosMask)
				if pos == 0 {
					pos = 32
				}
				if pos <= known {
					return StatusInternalError
				}
				known = pos
				Debugf("CL%d: collision at bit %d", level, pos)
				buf[1+(pos+7)/8] |= 1 << ((pos - 1) % 8)
				continue
			}
			if err != nil {
				return err
			}
			if known < frame.SegmentBits {
				known = frame.SegmentBits
				continue
			}
			break
		}

		src := buf[2:6]
		dst := uid.value[uidIndex : uidIndex+4]
		if buf[2] == PICCCT {
			src = buf[3:6]
			dst = uid.value[uidIndex : uidIndex+3]
		}
		copy(dst, src)

		if respLen != 3 || rxBits != 0 {
			Debugf("CL%d: SAK %d bytes, %d valid bits in last byte", level, respLen, rxBits)
			return StatusError
		}
		crc, err := d.CalculateCRC(resp[:1])
		if err != nil {
			return err
		}
		if crc[0] != resp[1] || crc[1] != resp[2] {
			return StatusCRCMismatch
		}

		sak := resp[0]
		if sak&sakCascade != 0 {
			level++
			continue
		}

		uid.SAK = sak
		uid.Size = byte(3*level + 1)
		Debugf("selected %s, SAK 0x%02X", uid.String(), sak)
		return nil
	}
}

// IsNewCardPresent reports whether a card in the IDLE state is in the
// field. Cards already selected or halted do not answer; use WakeupA for
// those.
func (d *Device) IsNewCardPresent() bool {
	if err := d.writeReg(TxModeReg, 0x00); err != nil {
		return false
	}
	if err := d.writeReg(RxModeReg, 0x00); err != nil {
		return false
	}
	if err := d.writeReg(ModWidthReg, 0x26); err != nil {
		return false
	}

	_, err := d.RequestA()
	return err == nil || errors.Is(err, StatusCollision)
}

// ReadCardUID selects a card after a successful IsNewCardPresent and fills
// uid. It reports whether a full UID was read.
func (d *Device) ReadCardUID(uid *UID) bool {
	return d.Select(uid, 0) == nil
}

// HaltA puts the selected card into the HALT state. A card that obeys does
// not answer, so silence is success and any reply is StatusError.
func (d *Device) HaltA() error {
	buf := []byte{PICCHltA, 0x00, 0, 0}
	crc, err := d.CalculateCRC(buf[:2])
	if err != nil {
		return err
	}
	buf[2], buf[3] = crc[0], crc[1]

	_, err = d.Transceive(buf, nil, nil, 0, false)
	switch {
	case errors.Is(err, StatusTimeout):
		return nil
	case err == nil:
		return StatusError
	default:
		return err
	}
}
