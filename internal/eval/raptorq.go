package eval

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	rqq "github.com/xssnick/raptorq"
)

// RaptorQ reference scheme, used as a baseline in loss sweeps. The encoder
// is systematic: symbol ids below K return the source symbols, ids at K and
// above return repair symbols.

type raptorQEncoder struct {
	k int
	l int
	e *rqq.Encoder
}

func newRaptorQEncoder(data []byte, k, l int) (*raptorQEncoder, error) {
	if k <= 0 || l <= 0 {
		return nil, errors.New("bad K or L")
	}
	rq := rqq.NewRaptorQ(uint32(l))
	enc, err := rq.CreateEncoder(data)
	if err != nil {
		return nil, err
	}
	return &raptorQEncoder{k: k, l: l, e: enc}, nil
}

func (e *raptorQEncoder) genSymbol(id uint32) []byte {
	return e.e.GenSymbol(id)
}

// RunRaptorQTrial mirrors RunFecalTrial for the RaptorQ baseline: drop
// systematic symbols per the loss process, then feed repair symbols one at a
// time until the block decodes.
func RunRaptorQTrial(p Params) (Result, error) {
	if p.FinalBytes <= 0 {
		p.FinalBytes = p.SymbolBytes
	}
	dataSize := (p.K-1)*p.SymbolBytes + p.FinalBytes

	data := make([]byte, dataSize)
	FillSelfCheckingPacket(p.Rng, data)

	encStart := time.Now()
	enc, err := newRaptorQEncoder(data, p.K, p.SymbolBytes)
	if err != nil {
		return Result{}, fmt.Errorf("raptorq encoder: %w", err)
	}
	encTime := time.Since(encStart)

	rq := rqq.NewRaptorQ(uint32(p.SymbolBytes))
	dec, err := rq.CreateDecoder(uint32(dataSize))
	if err != nil {
		return Result{}, fmt.Errorf("raptorq decoder: %w", err)
	}

	res := Result{EncodeTime: encTime}
	for id := 0; id < p.K; id++ {
		if p.Loss != nil && p.Loss.Drop() {
			res.LossCount++
			continue
		}
		if _, err := dec.AddSymbol(uint32(id), enc.genSymbol(uint32(id))); err != nil {
			return Result{}, fmt.Errorf("add symbol %d: %w", id, err)
		}
	}

	budget := res.LossCount + p.MaxExtra
	for repair := 0; repair <= budget; repair++ {
		if repair > 0 {
			id := uint32(p.K + repair - 1)
			t := time.Now()
			sym := enc.genSymbol(id)
			encTime += time.Since(t)
			if _, err := dec.AddSymbol(id, sym); err != nil {
				return Result{}, fmt.Errorf("add repair %d: %w", id, err)
			}
			res.RecoveryUsed++
		} else if res.LossCount > 0 {
			continue
		}

		t := time.Now()
		ok, decoded, err := dec.Decode()
		res.DecodeTime += time.Since(t)
		if err != nil {
			continue
		}
		if ok {
			if !bytes.Equal(decoded, data) {
				return Result{}, errors.New("raptorq decoded bytes differ from input")
			}
			res.Ok = true
			break
		}
	}

	res.EncodeTime = encTime
	return res, nil
}
