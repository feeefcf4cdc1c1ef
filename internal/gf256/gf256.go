// Package gf256 implements GF(2^8) arithmetic over byte buffers using
// log/antilog tables with primitive polynomial 0x11d.
package gf256

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Version of the table layout and buffer contract. Callers pass it to Init
// so a stale vendored copy is caught at startup instead of corrupting data.
const Version = 2

// Alignment is the byte alignment applied to buffers intended for wide loads.
const Alignment = 32

const polynomial = 0x11d

var (
	expTable [512]byte
	logTable [256]byte
	invTable [256]byte
	mulTable [256][256]byte
)

func init() {
	// generator = 0x02
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		logTable[byte(x)] = byte(i)
		x <<= 1
		if (x & 0x100) != 0 { // carry out from bit 8
			x ^= polynomial
		}
	}
	for i := 255; i < 512; i++ {
		expTable[i] = expTable[i-255]
	}
	for a := 1; a < 256; a++ {
		invTable[a] = expTable[255-int(logTable[a])]
		la := int(logTable[a])
		row := &mulTable[a]
		for b := 1; b < 256; b++ {
			row[b] = expTable[la+int(logTable[b])]
		}
	}
}

// Init validates the caller was built against this table version.
func Init(version int) error {
	if version != Version {
		return fmt.Errorf("gf256: version mismatch: library %d, caller %d", Version, version)
	}
	return nil
}

// Mul returns a*b.
func Mul(a, b byte) byte { return mulTable[a][b] }

// Sqr returns a*a.
func Sqr(a byte) byte { return mulTable[a][a] }

// Inv returns the multiplicative inverse of a, or 0 for a=0.
func Inv(a byte) byte { return invTable[a] }

// Div returns a/b, or 0 when b=0.
func Div(a, b byte) byte {
	if b == 0 {
		return 0
	}
	return mulTable[a][invTable[b]]
}

// Add computes dst ^= src over min(len(dst), len(src)) bytes.
func Add(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	i := 0
	for ; i+8 <= n; i += 8 {
		binary.LittleEndian.PutUint64(dst[i:],
			binary.LittleEndian.Uint64(dst[i:])^binary.LittleEndian.Uint64(src[i:]))
	}
	for ; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// Add2 computes dst ^= a ^ b over the shortest common length. Pairing two
// sources per pass halves the number of trips over dst.
func Add2(dst, a, b []byte) {
	n := len(dst)
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for ; i+8 <= n; i += 8 {
		binary.LittleEndian.PutUint64(dst[i:],
			binary.LittleEndian.Uint64(dst[i:])^
				binary.LittleEndian.Uint64(a[i:])^
				binary.LittleEndian.Uint64(b[i:]))
	}
	for ; i < n; i++ {
		dst[i] ^= a[i] ^ b[i]
	}
}

// MulAdd computes dst ^= c*src over min(len(dst), len(src)) bytes.
func MulAdd(dst []byte, c byte, src []byte) {
	switch c {
	case 0:
		return
	case 1:
		Add(dst, src)
		return
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	mt := &mulTable[c]
	for i := 0; i < n; i++ {
		dst[i] ^= mt[src[i]]
	}
}

// DivMem divides dst in place by d. d must be nonzero.
func DivMem(dst []byte, d byte) {
	if d == 1 {
		return
	}
	mt := &mulTable[invTable[d]]
	for i, v := range dst {
		dst[i] = mt[v]
	}
}

// AlignedSlice returns a zeroed slice of n bytes whose first element sits on
// an Alignment boundary, with capacity clamped so appends cannot alias the
// padding region.
func AlignedSlice(n int) []byte {
	buf := make([]byte, n+Alignment)
	off := int(uintptr(unsafe.Pointer(&buf[0])) & (Alignment - 1))
	buf = buf[Alignment-off:]
	return buf[:n:n]
}
