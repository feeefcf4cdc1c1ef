package fecal

import "github.com/fec-al/fecal/internal/gf256"

/*
   Decoder data recovery proceeds in five steps:

   (1) Collect original and recovery symbols until a solution may be
   possible.

   (2) Generate the recovery matrix: a GF(2^8) matrix whose width is the
   number of losses. Its elements are sampled from a larger matrix that is
   implicit, with columns for originals and rows for recovery symbols.

   (3) Solve: Gaussian elimination puts the matrix in upper triangular form.
   No symbol data has been touched yet, so a failed attempt is cheap; the
   decoder then waits for more symbols and resumes where it stalled.

   (4) Eliminate received data: for each recovery row used in the solution,
   subtract out every original that did arrive, leaving only the lost
   columns on the right-hand side. This step touches the most data.

   (5) Recover: multiply through the lower triangle in solution order, then
   back substitute and divide by the diagonal. The recovery buffers now hold
   original data and are published as the lost columns.
*/

// Decoder reconstructs lost originals from any mix of original and recovery
// symbols.
type Decoder struct {
	window decoderWindow

	// Matrix state for recovery rows that may admit a solution.
	matrix recoveryMatrixState

	// Has recovery been attempted with the current inputs?
	recoveryAttempted bool

	// Recovered symbols returned to the application.
	recovered []Symbol

	// Sums for each lane, built lazily from received originals.
	laneSums [columnLaneCount][columnSumCount][]byte

	// Scratch buffer for the product accumulator.
	productWorkspace []byte
}

// NewDecoder creates a decoder for a block of inputCount originals totaling
// totalBytes.
func NewDecoder(inputCount int, totalBytes uint64) (*Decoder, Result) {
	d := &Decoder{}
	d.matrix.window = &d.window
	if !d.window.setParameters(inputCount, totalBytes) {
		return nil, InvalidInput
	}
	d.window.allocateOriginals()
	return d, Success
}

// AddOriginal submits a received original symbol. The buffer is borrowed
// read-only until the decoder is discarded. Duplicate columns are ignored.
func (d *Decoder) AddOriginal(symbol Symbol) Result {
	if symbol.Index < 0 || symbol.Index >= d.window.inputCount ||
		symbol.Data == nil ||
		len(symbol.Data) != d.window.columnBytes(symbol.Index) {
		return InvalidInput
	}

	if d.window.addOriginal(symbol.Index, symbol.Data) {
		d.recoveryAttempted = false
	}
	return Success
}

// AddRecovery submits a received recovery symbol. The buffer is borrowed
// mutably and WILL be modified during decoding; recovered originals alias
// into it. Duplicate rows are ignored.
func (d *Decoder) AddRecovery(symbol Symbol) Result {
	if d.window.inputCount <= 0 ||
		symbol.Index < 0 || symbol.Data == nil ||
		len(symbol.Data) != d.window.symbolBytes {
		return InvalidInput
	}

	if d.window.addRecovery(symbol.Data, symbol.Index) {
		d.recoveryAttempted = false
	}
	return Success
}

// GetOriginal returns the data for a column, whether received directly or
// recovered by Decode.
func (d *Decoder) GetOriginal(column int) (Symbol, Result) {
	if column < 0 || column >= d.window.inputCount {
		return Symbol{}, InvalidInput
	}

	data := d.window.originalData[column].data
	if data == nil {
		return Symbol{Index: column}, NeedMoreData
	}
	return Symbol{Index: column, Data: data[:d.window.columnBytes(column)]}, Success
}

// Decode attempts to reconstruct all lost originals.
//
// It returns the recovered symbols on Success. NeedMoreData means the
// decoder wants more symbols; add at least one new original or recovery and
// call Decode again. The returned buffers are valid until the decoder is
// discarded.
func (d *Decoder) Decode() ([]Symbol, Result) {
	if d == nil || d.window.inputCount <= 0 {
		return nil, InvalidInput
	}

	// If all original data arrived:
	if d.window.originalGotCount >= d.window.inputCount {
		return nil, Success
	}

	// If we have not received enough data to try to decode:
	if d.window.originalGotCount+len(d.window.recoveryData) < d.window.inputCount {
		return nil, NeedMoreData
	}

	// If recovery was already attempted with these inputs:
	if d.recoveryAttempted {
		return nil, NeedMoreData
	}
	d.recoveryAttempted = true

	if !d.matrix.generateMatrix() {
		return nil, OutOfMemory
	}

	if !d.matrix.gaussianElimination() {
		return nil, NeedMoreData
	}

	if result := d.eliminateOriginalData(); result != Success {
		return nil, result
	}

	d.multiplyLowerTriangle()
	d.backSubstitution()

	return d.recovered, Success
}

// eliminateOriginalData removes every received original's contribution from
// the recovery rows used in the solution, leaving each buffer equal to the
// right-hand side over the lost columns only.
func (d *Decoder) eliminateOriginalData() Result {
	symbolBytes := d.window.symbolBytes
	if d.productWorkspace == nil {
		d.productWorkspace = gf256.AlignedSlice(symbolBytes)
	}

	// Eliminate in stored row order regardless of pivot order.
	for i := range d.window.recoveryData {
		recovery := &d.window.recoveryData[i]
		if !recovery.usedForSolution {
			continue
		}

		clear(d.productWorkspace)

		var summer1 xorSummer
		summer1.initialize(recovery.data)
		var summerRX xorSummer
		summerRX.initialize(d.productWorkspace)

		// Dense contributions, reconstructed from lane sums over the
		// originals that did arrive:
		for lane := 0; lane < columnLaneCount; lane++ {
			opcode := rowOpcode(lane, recovery.row)

			mask := uint32(1)
			for s := 0; s < columnSumCount; s++ {
				if opcode&mask != 0 {
					summer1.add(d.laneSum(lane, s))
				}
				mask <<= 1
			}
			for s := 0; s < columnSumCount; s++ {
				if opcode&mask != 0 {
					summerRX.add(d.laneSum(lane, s))
				}
				mask <<= 1
			}
		}

		// Sparse pair contributions for originals that arrived; lost
		// columns are handled by the matrix instead.
		inputCount := d.window.inputCount
		var prng pcgRandom
		prng.seed(uint64(recovery.row), uint64(inputCount))

		pairCount := (inputCount + pairAddRate - 1) / pairAddRate
		for pair := 0; pair < pairCount; pair++ {
			element1 := int(prng.next() % uint32(inputCount))
			if original1 := d.window.originalData[element1].data; original1 != nil {
				if element1 == inputCount-1 {
					gf256.Add(recovery.data[:d.window.finalBytes], original1[:d.window.finalBytes])
				} else {
					summer1.add(original1[:symbolBytes])
				}
			}

			elementRX := int(prng.next() % uint32(inputCount))
			if originalRX := d.window.originalData[elementRX].data; originalRX != nil {
				if elementRX == inputCount-1 {
					gf256.Add(d.productWorkspace[:d.window.finalBytes], originalRX[:d.window.finalBytes])
				} else {
					summerRX.add(originalRX[:symbolBytes])
				}
			}
		}

		summer1.finalize()
		summerRX.finalize()

		gf256.MulAdd(recovery.data, rowValue(recovery.row), d.productWorkspace)
	}

	return Success
}

// laneSum returns the (lane, sum) aggregate over the originals received so
// far, building and caching it on first use.
func (d *Decoder) laneSum(laneIndex, sumIndex int) []byte {
	if sum := d.laneSums[laneIndex][sumIndex]; sum != nil {
		return sum
	}

	symbolBytes := d.window.symbolBytes
	sum := gf256.AlignedSlice(symbolBytes)
	d.laneSums[laneIndex][sumIndex] = sum

	inputEnd := d.window.inputCount - 1

	if sumIndex == 0 {
		var summer xorSummer
		summer.initialize(sum)

		for column := laneIndex; column < inputEnd; column += columnLaneCount {
			if data := d.window.originalData[column].data; data != nil {
				summer.add(data[:symbolBytes])
			}
		}
		if inputEnd%columnLaneCount == laneIndex {
			if data := d.window.originalData[inputEnd].data; data != nil {
				gf256.Add(sum[:d.window.finalBytes], data[:d.window.finalBytes])
			}
		}

		summer.finalize()
		return sum
	}

	for column := laneIndex; column < inputEnd; column += columnLaneCount {
		data := d.window.originalData[column].data
		if data == nil {
			continue
		}

		cx := columnValue(column)
		if sumIndex == 2 {
			cx = gf256.Sqr(cx)
		}
		gf256.MulAdd(sum, cx, data[:symbolBytes])
	}
	if inputEnd%columnLaneCount == laneIndex {
		if data := d.window.originalData[inputEnd].data; data != nil {
			cx := columnValue(inputEnd)
			if sumIndex == 2 {
				cx = gf256.Sqr(cx)
			}
			gf256.MulAdd(sum[:d.window.finalBytes], cx, data[:d.window.finalBytes])
		}
	}

	return sum
}

// multiplyLowerTriangle applies the stored elimination multipliers to the
// right-hand sides in solution order from left to right.
func (d *Decoder) multiplyLowerTriangle() {
	columns := len(d.matrix.columns)
	symbolBytes := d.window.symbolBytes

	for colI := 0; colI < columns-1; colI++ {
		srcData := d.window.recoveryData[d.matrix.pivots[colI]].data[:symbolBytes]

		for colJ := colI + 1; colJ < columns; colJ++ {
			matrixRowIndex := d.matrix.pivots[colJ]
			y := d.matrix.matrix.get(matrixRowIndex, colI)
			if y == 0 {
				continue
			}

			gf256.MulAdd(d.window.recoveryData[matrixRowIndex].data[:symbolBytes], y, srcData)
		}
	}
}

// backSubstitution clears the upper triangle from right to left, publishing
// each recovered original in place in its recovery buffer.
func (d *Decoder) backSubstitution() {
	columns := len(d.matrix.columns)
	d.recovered = make([]Symbol, columns)

	for colI := columns - 1; colI >= 0; colI-- {
		matrixRowIndex := d.matrix.pivots[colI]
		recovery := d.window.recoveryData[matrixRowIndex].data
		y := d.matrix.matrix.get(matrixRowIndex, colI)

		originalColumn := d.matrix.columns[colI].column
		originalBytes := d.window.columnBytes(originalColumn)

		gf256.DivMem(recovery[:originalBytes], y)

		// The recovery buffer becomes the original's storage.
		d.window.originalData[originalColumn].data = recovery
		d.recovered[colI] = Symbol{Index: originalColumn, Data: recovery[:originalBytes]}

		// Eliminate from all pivot rows above:
		for colJ := 0; colJ < colI; colJ++ {
			pivotJ := d.matrix.pivots[colJ]
			x := d.matrix.matrix.get(pivotJ, colI)
			if x == 0 {
				continue
			}

			gf256.MulAdd(d.window.recoveryData[pivotJ].data[:originalBytes], x, recovery[:originalBytes])
		}
	}
}

// columnInfo caches the column number and multiplier for one lost original.
type columnInfo struct {
	column int
	cx     byte
}

// recoveryMatrixState holds the growing GF(2^8) matrix over the lost
// columns, plus the pivot indirection that lets row swaps move indices
// instead of row bytes.
type recoveryMatrixState struct {
	window *decoderWindow

	columns []columnInfo
	matrix  growingAlignedByteMatrix

	// pivots maps logical pivot position to physical matrix row.
	pivots []int

	// Pivot column to resume at after a failed elimination.
	geResumePivot int

	// Number of matrix rows already populated.
	filledRows int
}

// populateColumns assigns matrix columns to the currently lost originals in
// ascending column order.
func (m *recoveryMatrixState) populateColumns(columns int) {
	m.columns = make([]columnInfo, columns)

	nextSearchColumn := 0
	for matrixColumn := 0; matrixColumn < columns; matrixColumn++ {
		lostColumn := m.window.findNextLostElement(nextSearchColumn)
		if lostColumn >= m.window.inputCount {
			break
		}
		nextSearchColumn = lostColumn + 1

		m.columns[matrixColumn] = columnInfo{
			column: lostColumn,
			cx:     columnValue(lostColumn),
		}
		m.window.originalData[lostColumn].recoveryMatrixColumn = matrixColumn
	}
}

// generateMatrix populates matrix cells for rows received since the last
// attempt, rebuilding from scratch if the set of lost columns changed.
func (m *recoveryMatrixState) generateMatrix() bool {
	inputCount := m.window.inputCount
	columns := inputCount - m.window.originalGotCount
	rows := len(m.window.recoveryData)

	if columns != len(m.columns) {
		m.populateColumns(columns)

		// Reset everything.
		m.pivots = m.pivots[:0]
		m.geResumePivot = 0
		m.filledRows = 0

		if !m.matrix.initialize(rows, columns) {
			return false
		}
	} else {
		// Otherwise we just added rows.
		if !m.matrix.resize(rows, columns) {
			return false
		}
	}

	// For each row to fill:
	for i := m.filledRows; i < rows; i++ {
		rowData := m.matrix.rowSlice(i)
		row := m.window.recoveryData[i].row
		rx := rowValue(row)

		for j := 0; j < columns; j++ {
			column := m.columns[j].column
			cx := m.columns[j].cx
			cx2 := gf256.Sqr(cx)
			lane := column % columnLaneCount
			opcode := rowOpcode(lane, row)

			var value byte
			if opcode&1 != 0 {
				value ^= 1
			}
			if opcode&2 != 0 {
				value ^= cx
			}
			if opcode&4 != 0 {
				value ^= cx2
			}
			if opcode&8 != 0 {
				value ^= rx
			}
			if opcode&16 != 0 {
				value ^= gf256.Mul(cx, rx)
			}
			if opcode&32 != 0 {
				value ^= gf256.Mul(cx2, rx)
			}
			rowData[j] = value
		}

		// Sparse pair contributions land on whichever drawn columns are
		// still lost. Both draws hitting the same lost column accumulate.
		var prng pcgRandom
		prng.seed(uint64(row), uint64(inputCount))

		pairCount := (inputCount + pairAddRate - 1) / pairAddRate
		for k := 0; k < pairCount; k++ {
			element1 := int(prng.next() % uint32(inputCount))
			if m.window.originalData[element1].data == nil {
				rowData[m.window.originalData[element1].recoveryMatrixColumn] ^= 1
			}

			elementRX := int(prng.next() % uint32(inputCount))
			if m.window.originalData[elementRX].data == nil {
				rowData[m.window.originalData[elementRX].recoveryMatrixColumn] ^= rx
			}
		}
	}

	// New rows start with identity pivot slots.
	for len(m.pivots) < rows {
		m.pivots = append(m.pivots, len(m.pivots))
	}

	// If some elimination already ran, the new rows missed it; reduce them
	// against every resolved pivot before they are considered for pivoting.
	if m.geResumePivot > 0 {
		m.resumeGE(m.filledRows, rows)
	}

	m.filledRows = rows
	return true
}

func (m *recoveryMatrixState) resumeGE(oldRows, rows int) {
	if oldRows >= rows {
		return
	}

	columns := m.matrix.columns

	for pivotI := 0; pivotI < m.geResumePivot; pivotI++ {
		geRow := m.matrix.rowSlice(m.pivots[pivotI])
		valI := geRow[pivotI]

		for newRowIndex := oldRows; newRowIndex < rows; newRowIndex++ {
			eliminateRow(geRow, m.matrix.rowSlice(newRowIndex), pivotI, columns, valI)
		}
	}
}

// gaussianElimination puts the matrix in upper triangular form, marking the
// recovery rows that participate in the solution. Returns false when a pivot
// column is all zero; the decoder then waits for more symbols.
func (m *recoveryMatrixState) gaussianElimination() bool {
	if m.geResumePivot > 0 {
		return m.pivotedGaussianElimination(m.geResumePivot)
	}

	// Solve as much as possible in natural row order first. The matrix is
	// dense, so this usually runs to completion without touching pivots.
	columns := m.matrix.columns
	rows := m.matrix.rows

	for pivotI := 0; pivotI < columns; pivotI++ {
		geRow := m.matrix.rowSlice(pivotI)
		valI := geRow[pivotI]
		if valI == 0 {
			return m.pivotedGaussianElimination(pivotI)
		}

		m.window.recoveryData[pivotI].usedForSolution = true

		for pivotJ := pivotI + 1; pivotJ < rows; pivotJ++ {
			eliminateRow(geRow, m.matrix.rowSlice(pivotJ), pivotI, columns, valI)
		}
	}

	return true
}

// pivotedGaussianElimination continues elimination once a zero diagonal was
// hit, routing all row access through the pivot indirection.
func (m *recoveryMatrixState) pivotedGaussianElimination(pivotI int) bool {
	columns := m.matrix.columns
	rows := m.matrix.rows

	// Resume scanning below the row that produced the zero.
	pivotJ := pivotI + 1

	for ; pivotI < columns; pivotI, pivotJ = pivotI+1, pivotI+1 {
		found := false

		for ; pivotJ < rows; pivotJ++ {
			matrixRowIndexJ := m.pivots[pivotJ]
			geRow := m.matrix.rowSlice(matrixRowIndexJ)
			valI := geRow[pivotI]
			if valI == 0 {
				continue
			}

			// Swap indices rather than row bytes.
			if pivotI != pivotJ {
				m.pivots[pivotI], m.pivots[pivotJ] = m.pivots[pivotJ], m.pivots[pivotI]
			}

			m.window.recoveryData[matrixRowIndexJ].usedForSolution = true

			// The last pivot column has no rows below to eliminate.
			if pivotI >= columns-1 {
				return true
			}

			for pivotK := pivotI + 1; pivotK < rows; pivotK++ {
				eliminateRow(geRow, m.matrix.rowSlice(m.pivots[pivotK]), pivotI, columns, valI)
			}

			found = true
			break
		}

		if !found {
			// Remember where we stalled for the next attempt.
			m.geResumePivot = pivotI
			return false
		}
	}

	return true
}

// eliminateRow zeroes remRow's entry at the pivot column, storing the
// multiplier used in its place for reuse during right-hand side elimination.
func eliminateRow(geRow, remRow []byte, pivotI, columnEnd int, valI byte) {
	valJ := remRow[pivotI]
	if valJ == 0 {
		return
	}

	y := gf256.Div(valJ, valI)
	remRow[pivotI] = y

	gf256.MulAdd(remRow[pivotI+1:columnEnd], y, geRow[pivotI+1:columnEnd])
}
