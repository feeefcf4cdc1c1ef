// Package eval runs loss trials against the codec and reference schemes.
package eval

import (
	"encoding/binary"
	"math/rand"
)

// Self-checking packets let a trial validate recovered data without keeping
// a copy of the plaintext: long packets carry a rotating checksum and length
// prefix, very short packets repeat a single fill byte.

const minChecksumBytes = 16

// FillSelfCheckingPacket writes a random self-validating payload.
func FillSelfCheckingPacket(rng *rand.Rand, packet []byte) {
	if len(packet) < minChecksumBytes {
		v := byte(rng.Uint32())
		for i := range packet {
			packet[i] = v
		}
		return
	}

	crc := uint32(len(packet))
	binary.LittleEndian.PutUint32(packet[4:], uint32(len(packet)))
	for i := 8; i < len(packet); i++ {
		v := byte(rng.Uint32())
		packet[i] = v
		crc = crc<<3 | crc>>29
		crc += uint32(v)
	}
	binary.LittleEndian.PutUint32(packet, crc)
}

// CheckSelfCheckingPacket validates a payload written by
// FillSelfCheckingPacket.
func CheckSelfCheckingPacket(packet []byte) bool {
	if len(packet) < minChecksumBytes {
		if len(packet) < 1 {
			return false
		}
		v := packet[0]
		for _, b := range packet[1:] {
			if b != v {
				return false
			}
		}
		return true
	}

	if binary.LittleEndian.Uint32(packet[4:]) != uint32(len(packet)) {
		return false
	}
	crc := uint32(len(packet))
	for _, v := range packet[8:] {
		crc = crc<<3 | crc>>29
		crc += uint32(v)
	}
	return binary.LittleEndian.Uint32(packet) == crc
}
