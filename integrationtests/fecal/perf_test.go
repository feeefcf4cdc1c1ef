package fecal_test

import (
	"math/rand"
	"testing"

	"github.com/fec-al/fecal"
)

func benchOriginals(rng *rand.Rand, inputCount, symbolBytes int) ([][]byte, uint64) {
	originals := make([][]byte, inputCount)
	for i := range originals {
		originals[i] = make([]byte, symbolBytes)
		rng.Read(originals[i])
	}
	return originals, uint64(inputCount) * uint64(symbolBytes)
}

func BenchmarkEncoderCreate(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	originals, total := benchOriginals(rng, 200, 1300)
	b.SetBytes(int64(total))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, r := fecal.NewEncoder(originals, total); r != fecal.Success {
			b.Fatal(r)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	rng := rand.New(rand.NewSource(2))
	originals, total := benchOriginals(rng, 200, 1300)
	enc, r := fecal.NewEncoder(originals, total)
	if r != fecal.Success {
		b.Fatal(r)
	}
	sym := fecal.Symbol{Data: make([]byte, enc.SymbolBytes())}
	b.SetBytes(int64(enc.SymbolBytes()))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sym.Index = i
		if r := enc.Encode(&sym); r != fecal.Success {
			b.Fatal(r)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	const (
		inputCount = 200
		lossCount  = 20
	)
	rng := rand.New(rand.NewSource(3))
	originals, total := benchOriginals(rng, inputCount, 1300)
	enc, r := fecal.NewEncoder(originals, total)
	if r != fecal.Success {
		b.Fatal(r)
	}

	// More rows than losses so a singular sample cannot abort the run.
	rows := make([]fecal.Symbol, lossCount+3)
	for i := range rows {
		rows[i] = fecal.Symbol{Index: i, Data: make([]byte, enc.SymbolBytes())}
		if r := enc.Encode(&rows[i]); r != fecal.Success {
			b.Fatal(r)
		}
	}

	b.SetBytes(int64(lossCount) * 1300)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dec, r := fecal.NewDecoder(inputCount, total)
		if r != fecal.Success {
			b.Fatal(r)
		}
		for column := lossCount; column < inputCount; column++ {
			dec.AddOriginal(fecal.Symbol{Index: column, Data: originals[column]})
		}
		// Decode mutates recovery buffers, so each run feeds fresh copies.
		syms := make([]fecal.Symbol, len(rows))
		for j := range rows {
			data := make([]byte, len(rows[j].Data))
			copy(data, rows[j].Data)
			syms[j] = fecal.Symbol{Index: rows[j].Index, Data: data}
		}
		b.StartTimer()

		solved := false
		for j := range syms {
			dec.AddRecovery(syms[j])
			if j < lossCount-1 {
				continue
			}
			if _, r := dec.Decode(); r == fecal.Success {
				solved = true
				break
			}
		}
		if !solved {
			b.Fatal("block did not solve")
		}
	}
}
