package eval

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/fec-al/fecal"
	"github.com/fec-al/fecal/internal/dropper"
)

// Params configures one loss trial.
type Params struct {
	K           int
	SymbolBytes int
	FinalBytes  int // defaults to SymbolBytes
	Loss        dropper.Dropper
	MaxExtra    int // extra recovery symbols beyond the loss count before giving up
	Rng         *rand.Rand
}

// Result reports one trial.
type Result struct {
	Ok           bool
	LossCount    int
	RecoveryUsed int // recovery symbols consumed until Decode succeeded
	EncodeTime   time.Duration
	DecodeTime   time.Duration
}

// Overhead is the number of recovery symbols needed beyond the loss count.
func (r Result) Overhead() int { return r.RecoveryUsed - r.LossCount }

// RunFecalTrial encodes a block of self-checking packets, drops originals
// per the loss process, and feeds the decoder recovery symbols one at a time
// until every lost original is recovered and validated.
func RunFecalTrial(p Params) (Result, error) {
	if p.FinalBytes <= 0 {
		p.FinalBytes = p.SymbolBytes
	}
	totalBytes := uint64(p.K-1)*uint64(p.SymbolBytes) + uint64(p.FinalBytes)

	originals := make([][]byte, p.K)
	for i := range originals {
		n := p.SymbolBytes
		if i == p.K-1 {
			n = p.FinalBytes
		}
		originals[i] = make([]byte, n)
		FillSelfCheckingPacket(p.Rng, originals[i])
	}

	encStart := time.Now()
	enc, r := fecal.NewEncoder(originals, totalBytes)
	if r != fecal.Success {
		return Result{}, fmt.Errorf("encoder create: %s", r)
	}
	encTime := time.Since(encStart)

	dec, r := fecal.NewDecoder(p.K, totalBytes)
	if r != fecal.Success {
		return Result{}, fmt.Errorf("decoder create: %s", r)
	}

	res := Result{}
	for column := 0; column < p.K; column++ {
		if p.Loss != nil && p.Loss.Drop() {
			res.LossCount++
			continue
		}
		if r := dec.AddOriginal(fecal.Symbol{Index: column, Data: originals[column]}); r != fecal.Success {
			return Result{}, fmt.Errorf("add original %d: %s", column, r)
		}
	}

	if res.LossCount == 0 {
		if _, r := dec.Decode(); r != fecal.Success {
			return Result{}, fmt.Errorf("decode with no loss: %s", r)
		}
		res.Ok = true
		res.EncodeTime = encTime
		return res, nil
	}

	var recovered []fecal.Symbol
	budget := res.LossCount + p.MaxExtra
	for row := 0; row < budget; row++ {
		buf := make([]byte, enc.SymbolBytes())
		sym := fecal.Symbol{Index: row, Data: buf}

		t := time.Now()
		if r := enc.Encode(&sym); r != fecal.Success {
			return Result{}, fmt.Errorf("encode row %d: %s", row, r)
		}
		encTime += time.Since(t)

		if r := dec.AddRecovery(sym); r != fecal.Success {
			return Result{}, fmt.Errorf("add recovery %d: %s", row, r)
		}
		res.RecoveryUsed++

		t = time.Now()
		syms, r := dec.Decode()
		res.DecodeTime += time.Since(t)
		switch r {
		case fecal.Success:
			recovered = syms
			res.Ok = true
		case fecal.NeedMoreData:
			continue
		default:
			return Result{}, fmt.Errorf("decode: %s", r)
		}
		break
	}

	res.EncodeTime = encTime
	if !res.Ok {
		return res, nil
	}

	if len(recovered) != res.LossCount {
		return Result{}, fmt.Errorf("recovered %d symbols, lost %d", len(recovered), res.LossCount)
	}
	for _, sym := range recovered {
		if !CheckSelfCheckingPacket(sym.Data) {
			return Result{}, fmt.Errorf("recovered column %d failed self check", sym.Index)
		}
		if !bytes.Equal(sym.Data, originals[sym.Index]) {
			return Result{}, fmt.Errorf("recovered column %d differs from input", sym.Index)
		}
	}
	return res, nil
}
