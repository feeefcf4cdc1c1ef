package eval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelfCheckingPacketRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 15, 16, 17, 64, 1300} {
		buf := make([]byte, n)
		FillSelfCheckingPacket(rng, buf)
		assert.True(t, CheckSelfCheckingPacket(buf), "n=%d", n)
	}
}

func TestSelfCheckingPacketDetectsCorruption(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{2, 16, 64, 1300} {
		buf := make([]byte, n)
		FillSelfCheckingPacket(rng, buf)
		for _, pos := range []int{0, n / 2, n - 1} {
			buf[pos] ^= 0x01
			assert.False(t, CheckSelfCheckingPacket(buf), "n=%d pos=%d", n, pos)
			buf[pos] ^= 0x01
		}
	}
}

func TestSelfCheckingPacketEmpty(t *testing.T) {
	assert.False(t, CheckSelfCheckingPacket(nil))
}
