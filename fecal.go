// Package fecal implements FEC-AL, a block erasure code over GF(2^8).
//
// An encoder protects K equally sized original symbols with an unbounded
// stream of recovery symbols. A decoder that holds any K distinct symbols
// (originals and/or recovery) can almost always reconstruct every missing
// original; when the first attempt fails, one or two further recovery
// symbols nearly always complete it.
//
// Codec objects are single threaded. Distinct objects share no state and may
// be used concurrently.
package fecal

import "github.com/fec-al/fecal/internal/gf256"

// Version of the code family. Wire compatibility is fixed by the generator
// functions in this package; the version gates accidental mixing.
const Version = 2

// Result reports the outcome of a codec operation.
type Result int

const (
	// NeedMoreData means more symbols must be added before the operation
	// can succeed. It is non-fatal and resumable.
	NeedMoreData Result = 1

	// Success means the operation completed.
	Success Result = 0

	// InvalidInput means a parameter was invalid.
	InvalidInput Result = -1

	// Platform means the runtime failed static initialization.
	Platform Result = -2

	// OutOfMemory means an internal allocation failed. The codec instance
	// should be discarded.
	OutOfMemory Result = -3

	// Unexpected means an internal invariant was violated.
	Unexpected Result = -4
)

func (r Result) String() string {
	switch r {
	case NeedMoreData:
		return "NeedMoreData"
	case Success:
		return "Success"
	case InvalidInput:
		return "InvalidInput"
	case Platform:
		return "Platform"
	case OutOfMemory:
		return "OutOfMemory"
	case Unexpected:
		return "Unexpected"
	}
	return "Unknown"
}

// Symbol is one unit of original or recovery data.
//
// For originals, Index is the column in [0, K) and len(Data) is the column
// size (the final column may be shorter). For recovery symbols, Index is the
// row number chosen by the application, starting from 0, and len(Data) is
// the full symbol size.
type Symbol struct {
	// Data is the application-provided buffer. The decoder borrows original
	// buffers read-only and recovery buffers mutably until it is discarded.
	Data []byte

	// Index is the column number for originals or row number for recovery.
	Index int
}

// Init performs static initialization, verifying the field library matches.
// Call it once before creating codec objects.
func Init() Result {
	return InitVersion(Version)
}

// InitVersion is Init for callers pinning an explicit code family version.
func InitVersion(version int) Result {
	if version != Version {
		return InvalidInput
	}
	if err := gf256.Init(gf256.Version); err != nil {
		return Platform
	}
	return Success
}
