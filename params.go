package fecal

// Code parameters. These are part of the wire format and cannot be tuned
// without breaking compatibility with existing encoders and decoders.
const (
	// Values 3..255 that the column multiplier cycles through.
	columnValuePeriod = 253

	// Values 1..255 that the row multiplier cycles through.
	rowValuePeriod = 255

	// Number of parallel lanes: lane(column) = column % columnLaneCount.
	columnLaneCount = 8

	// Number of running sums kept per lane:
	// sum 0 is the parity XOR of the lane's input data,
	// sum 1 weights each column by its column value,
	// sum 2 weights each column by its column value squared.
	// The opcode bit layout hardcodes this count.
	columnSumCount = 3

	// Rate at which rows mix in random pairs of columns.
	pairAddRate = 16
)

// columnValue returns the multiplier CX for a column.
// The multiplier 199 is coprime to the period, so the map visits each value
// exactly once per period.
func columnValue(column int) byte {
	return byte(3 + (uint32(column)*199)%columnValuePeriod)
}

// rowValue returns the multiplier RX for a row.
func rowValue(row int) byte {
	return byte(1 + (uint32(row)+1)%rowValuePeriod)
}

// int32Hash is Thomas Wang's 32-bit integer hash.
// http://burtleburtle.net/bob/hash/integer.html
func int32Hash(key uint32) uint32 {
	key += ^(key << 15)
	key ^= key >> 10
	key += key << 3
	key ^= key >> 6
	key += ^(key << 11)
	key ^= key >> 16
	return key
}

// rowOpcode selects which lane sums contribute to a row. Bits 0..2 feed the
// sum accumulator, bits 3..5 feed the product accumulator that is later
// multiplied by the row value.
func rowOpcode(lane, row int) uint32 {
	const sumMask = 1<<(columnSumCount*2) - 1
	const zeroValue = 1 << ((columnSumCount - 1) * 2)

	// This offset tunes the quality of the upper left of the generated
	// matrix, which is hit in practice for the first block of input data.
	const arbitraryOffset = 3

	opcode := int32Hash(uint32(lane)+uint32(row+arbitraryOffset)*columnLaneCount) & sumMask
	if opcode == 0 {
		return zeroValue
	}
	return opcode
}

// pcgRandom is the PCG XSH-RR 64/32 generator.
// From http://www.pcg-random.org/
type pcgRandom struct {
	state uint64
	inc   uint64
}

func (p *pcgRandom) seed(y, x uint64) {
	p.state = 0
	p.inc = y<<1 | 1
	p.next()
	p.state += x
	p.next()
}

func (p *pcgRandom) next() uint32 {
	old := p.state
	p.state = old*6364136223846793005 + p.inc
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return xorshifted>>rot | xorshifted<<(-rot&31)
}
