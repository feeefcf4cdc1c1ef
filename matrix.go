package fecal

import "github.com/fec-al/fecal/internal/gf256"

// growingAlignedByteMatrix is a row-major byte matrix whose rows start on
// aligned boundaries. It can grow in rows or columns while keeping existing
// content in the top-left rectangle.
type growingAlignedByteMatrix struct {
	data []byte

	// Used rows, columns.
	rows    int
	columns int

	// Allocated rows, columns (row stride).
	allocatedRows    int
	allocatedColumns int
}

// Overallocation applied on each growth, tuned for the expected maximum
// recovery failure rate.
const (
	matrixExtraRows       = 4
	matrixMinExtraColumns = 4
)

func nextAlignedOffset(offset int) int {
	return (offset + gf256.Alignment - 1) &^ (gf256.Alignment - 1)
}

func (m *growingAlignedByteMatrix) initialize(rows, columns int) bool {
	m.rows = rows
	m.columns = columns
	m.allocatedRows = rows + matrixExtraRows
	m.allocatedColumns = nextAlignedOffset(columns + matrixMinExtraColumns)

	m.data = gf256.AlignedSlice(m.allocatedRows * m.allocatedColumns)
	return m.data != nil
}

// resize grows the matrix, retaining existing data.
func (m *growingAlignedByteMatrix) resize(rows, columns int) bool {
	if rows <= m.allocatedRows && columns <= m.allocatedColumns {
		m.rows = rows
		m.columns = columns
		return true
	}

	allocatedRows := rows + matrixExtraRows
	allocatedColumns := nextAlignedOffset(columns + matrixMinExtraColumns)

	buffer := gf256.AlignedSlice(allocatedRows * allocatedColumns)
	if buffer == nil {
		return false
	}

	if m.data != nil && m.columns > 0 {
		copyCount := m.columns
		if copyCount > columns {
			copyCount = columns
		}
		for i := 0; i < m.rows; i++ {
			copy(buffer[i*allocatedColumns:i*allocatedColumns+copyCount],
				m.data[i*m.allocatedColumns:])
		}
	}

	m.allocatedRows = allocatedRows
	m.allocatedColumns = allocatedColumns
	m.rows = rows
	m.columns = columns
	m.data = buffer
	return true
}

func (m *growingAlignedByteMatrix) get(row, column int) byte {
	return m.data[row*m.allocatedColumns+column]
}

// rowSlice returns the full allocated stride for a physical row.
func (m *growingAlignedByteMatrix) rowSlice(row int) []byte {
	offset := row * m.allocatedColumns
	return m.data[offset : offset+m.allocatedColumns]
}
