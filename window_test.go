package fecal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetParameters(t *testing.T) {
	cases := []struct {
		inputCount  int
		totalBytes  uint64
		symbolBytes int
		finalBytes  int
	}{
		{1, 1, 1, 1},
		{1, 16, 16, 16},
		{2, 11, 6, 5},
		{2, 16, 8, 8},
		{10, 640, 64, 64},
		{10, 641, 65, 56},
		{200, 260000, 1300, 1300},
		{200, 259999, 1300, 1299},
		{3, 7, 3, 1},
	}
	for _, c := range cases {
		var w appDataWindow
		require.True(t, w.setParameters(c.inputCount, c.totalBytes), "K=%d total=%d", c.inputCount, c.totalBytes)
		assert.Equal(t, c.symbolBytes, w.symbolBytes, "K=%d total=%d", c.inputCount, c.totalBytes)
		assert.Equal(t, c.finalBytes, w.finalBytes, "K=%d total=%d", c.inputCount, c.totalBytes)
	}
}

func TestSetParametersInvariant(t *testing.T) {
	for inputCount := 1; inputCount <= 70; inputCount++ {
		for totalBytes := uint64(inputCount); totalBytes < uint64(inputCount)*9; totalBytes++ {
			var w appDataWindow
			require.True(t, w.setParameters(inputCount, totalBytes))
			assert.Equal(t, totalBytes,
				uint64(w.symbolBytes)*uint64(inputCount-1)+uint64(w.finalBytes))
			assert.GreaterOrEqual(t, w.finalBytes, 1)
			assert.LessOrEqual(t, w.finalBytes, w.symbolBytes)
		}
	}
}

func TestSetParametersRejects(t *testing.T) {
	var w appDataWindow
	assert.False(t, w.setParameters(0, 10))
	assert.False(t, w.setParameters(4, 3))
	assert.False(t, w.setParameters(1, 0))
}

func TestColumnBytes(t *testing.T) {
	var w appDataWindow
	require.True(t, w.setParameters(3, 7))
	assert.Equal(t, 3, w.columnBytes(0))
	assert.Equal(t, 3, w.columnBytes(1))
	assert.Equal(t, 1, w.columnBytes(2))
	assert.True(t, w.isFinalColumn(2))
	assert.False(t, w.isFinalColumn(1))
}

func TestBitset64(t *testing.T) {
	var b bitset64
	assert.Equal(t, 0, b.findFirstClear(0))
	b.set(0)
	assert.Equal(t, 1, b.findFirstClear(0))
	b.set(1)
	b.set(2)
	assert.Equal(t, 3, b.findFirstClear(0))
	assert.Equal(t, 3, b.findFirstClear(3))
	assert.True(t, b.check(2))
	assert.False(t, b.check(3))

	for i := 0; i < 64; i++ {
		b.set(i)
	}
	assert.Equal(t, 64, b.findFirstClear(0))
	assert.Equal(t, 64, b.findFirstClear(63))
}

func newTestDecoderWindow(t *testing.T, inputCount int, totalBytes uint64) *decoderWindow {
	t.Helper()
	w := &decoderWindow{}
	require.True(t, w.setParameters(inputCount, totalBytes))
	w.allocateOriginals()
	return w
}

func TestAddOriginalDuplicate(t *testing.T) {
	w := newTestDecoderWindow(t, 4, 16)
	data := make([]byte, 4)
	assert.True(t, w.addOriginal(2, data))
	assert.False(t, w.addOriginal(2, data))
	assert.Equal(t, 1, w.originalGotCount)
}

func TestAddRecoveryDuplicate(t *testing.T) {
	w := newTestDecoderWindow(t, 4, 16)
	data := make([]byte, 4)
	assert.True(t, w.addRecovery(data, 9))
	assert.False(t, w.addRecovery(data, 9))
	assert.Len(t, w.recoveryData, 1)
}

func TestFindNextLostElement(t *testing.T) {
	w := newTestDecoderWindow(t, 130, 130)
	got := []int{0, 1, 5, 63, 64, 127, 129}
	for _, column := range got {
		require.True(t, w.addOriginal(column, make([]byte, w.columnBytes(column))))
	}

	var lost []int
	for next := w.findNextLostElement(0); next < w.inputCount; next = w.findNextLostElement(next + 1) {
		lost = append(lost, next)
	}
	assert.Len(t, lost, 130-len(got))

	gotSet := make(map[int]bool)
	for _, c := range got {
		gotSet[c] = true
	}
	for _, c := range lost {
		assert.False(t, gotSet[c], "column %d reported lost but was received", c)
	}

	assert.Equal(t, 2, w.findNextLostElement(0))
	assert.Equal(t, 65, w.findNextLostElement(63))
	assert.Equal(t, 128, w.findNextLostElement(127))
	assert.Equal(t, w.inputCount, w.findNextLostElement(130))
}

func TestFindNextLostElementAllGot(t *testing.T) {
	w := newTestDecoderWindow(t, 64, 64)
	for column := 0; column < 64; column++ {
		require.True(t, w.addOriginal(column, make([]byte, 1)))
	}
	assert.Equal(t, 64, w.findNextLostElement(0))
}
