package fecal

import "github.com/fec-al/fecal/internal/gf256"

// Encoder produces recovery symbols for a fixed block of original data.
//
// The encoder precomputes running sums of the originals at construction so
// each Encode call does work that is nearly independent of K.
type Encoder struct {
	window   appDataWindow
	original [][]byte

	// Sums for each lane.
	laneSums [columnLaneCount][columnSumCount][]byte

	// Scratch buffer for the product accumulator.
	productWorkspace []byte
}

// NewEncoder creates an encoder over the given original buffers.
//
// Column sizes are derived from len(inputData) and totalBytes alone: every
// column holds ceil(totalBytes/K) bytes except the final one, which holds
// totalBytes modulo that size (the full size when the remainder is zero).
// A buffer shorter than its derived size is rejected. The buffers are
// borrowed read-only for the life of the encoder.
func NewEncoder(inputData [][]byte, totalBytes uint64) (*Encoder, Result) {
	e := &Encoder{}
	if !e.window.setParameters(len(inputData), totalBytes) {
		return nil, InvalidInput
	}
	for column, data := range inputData {
		if data == nil || len(data) < e.window.columnBytes(column) {
			return nil, InvalidInput
		}
	}
	e.original = inputData

	symbolBytes := e.window.symbolBytes
	inputCount := e.window.inputCount

	for lane := 0; lane < columnLaneCount; lane++ {
		for s := 0; s < columnSumCount; s++ {
			e.laneSums[lane][s] = gf256.AlignedSlice(symbolBytes)
		}
	}
	e.productWorkspace = gf256.AlignedSlice(symbolBytes)

	// Sum 0 accumulates plain XOR per lane, pairing columns to cut the
	// number of passes over the destination.
	columnEnd := inputCount - 1
	for lane := 0; lane < columnLaneCount; lane++ {
		var sum xorSummer
		sum.initialize(e.laneSums[lane][0])

		for column := lane; column < columnEnd; column += columnLaneCount {
			sum.add(e.original[column][:symbolBytes])
		}

		// The final column contributes only its own length.
		if columnEnd%columnLaneCount == lane {
			gf256.Add(e.laneSums[lane][0][:e.window.finalBytes],
				e.original[columnEnd][:e.window.finalBytes])
		}

		sum.finalize()
	}

	// Sums 1 and 2 weight each column by CX and CX^2.
	for column := 0; column < inputCount; column++ {
		columnBytes := e.window.columnBytes(column)
		lane := column % columnLaneCount
		cx := columnValue(column)
		cx2 := gf256.Sqr(cx)
		data := e.original[column][:columnBytes]

		gf256.MulAdd(e.laneSums[lane][1][:columnBytes], cx, data)
		gf256.MulAdd(e.laneSums[lane][2][:columnBytes], cx2, data)
	}

	return e, Success
}

// SymbolBytes returns the recovery symbol size for this block.
func (e *Encoder) SymbolBytes() int {
	return e.window.symbolBytes
}

// Encode writes the recovery symbol for row symbol.Index into symbol.Data,
// which must be exactly SymbolBytes long.
func (e *Encoder) Encode(symbol *Symbol) Result {
	if e == nil || e.productWorkspace == nil {
		return InvalidInput
	}
	symbolBytes := e.window.symbolBytes
	if symbol == nil || symbol.Index < 0 || len(symbol.Data) != symbolBytes {
		return InvalidInput
	}

	count := e.window.inputCount
	outputSum := symbol.Data
	outputProduct := e.productWorkspace
	row := symbol.Index

	var prng pcgRandom
	prng.seed(uint64(row), uint64(count))

	pairCount := (count + pairAddRate - 1) / pairAddRate

	// Unrolled first iteration: the first pair initializes both buffers.
	{
		element1 := int(prng.next() % uint32(count))
		elementRX := int(prng.next() % uint32(count))

		e.copyColumn(outputSum, element1)
		e.copyColumn(outputProduct, elementRX)
	}

	var sum xorSummer
	sum.initialize(outputSum)
	var prod xorSummer
	prod.initialize(outputProduct)

	for i := 1; i < pairCount; i++ {
		element1 := int(prng.next() % uint32(count))
		elementRX := int(prng.next() % uint32(count))

		if e.window.isFinalColumn(element1) {
			gf256.Add(outputSum[:e.window.finalBytes], e.original[element1][:e.window.finalBytes])
		} else {
			sum.add(e.original[element1][:symbolBytes])
		}

		if e.window.isFinalColumn(elementRX) {
			gf256.Add(outputProduct[:e.window.finalBytes], e.original[elementRX][:e.window.finalBytes])
		} else {
			prod.add(e.original[elementRX][:symbolBytes])
		}
	}

	// Mix in the precomputed lane sums selected by the row opcode.
	for lane := 0; lane < columnLaneCount; lane++ {
		opcode := rowOpcode(lane, row)

		mask := uint32(1)
		for s := 0; s < columnSumCount; s++ {
			if opcode&mask != 0 {
				sum.add(e.laneSums[lane][s])
			}
			mask <<= 1
		}
		for s := 0; s < columnSumCount; s++ {
			if opcode&mask != 0 {
				prod.add(e.laneSums[lane][s])
			}
			mask <<= 1
		}
	}

	sum.finalize()
	prod.finalize()

	// Sum += RX * Product
	gf256.MulAdd(outputSum, rowValue(row), outputProduct)

	return Success
}

// copyColumn copies a column into dst, zero extending past the final
// column's length.
func (e *Encoder) copyColumn(dst []byte, column int) {
	n := e.window.columnBytes(column)
	copy(dst[:n], e.original[column])
	clear(dst[n:])
}
