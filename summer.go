package fecal

import "github.com/fec-al/fecal/internal/gf256"

// xorSummer accumulates XOR sources into a destination buffer, pairing
// sources so most of the work runs through the two-source add.
type xorSummer struct {
	dest    []byte
	waiting []byte
}

func (s *xorSummer) initialize(dest []byte) {
	s.dest = dest
	s.waiting = nil
}

func (s *xorSummer) add(src []byte) {
	if s.waiting != nil {
		gf256.Add2(s.dest, src, s.waiting)
		s.waiting = nil
		return
	}
	s.waiting = src
}

// finalize flushes an unpaired source, if any.
func (s *xorSummer) finalize() {
	if s.waiting != nil {
		gf256.Add(s.dest, s.waiting)
		s.waiting = nil
	}
}
