package gf256

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitVersion(t *testing.T) {
	assert.NoError(t, Init(Version))
	assert.Error(t, Init(Version+1))
	assert.Error(t, Init(0))
}

func TestMulProperties(t *testing.T) {
	// Identity and zero.
	for a := 0; a < 256; a++ {
		assert.Equal(t, byte(a), Mul(byte(a), 1))
		assert.Equal(t, byte(a), Mul(1, byte(a)))
		assert.Equal(t, byte(0), Mul(byte(a), 0))
	}

	// Commutativity and the inverse law on a sample.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		a := byte(rng.Uint32())
		b := byte(rng.Uint32())
		assert.Equal(t, Mul(a, b), Mul(b, a))
		if a != 0 {
			assert.Equal(t, byte(1), Mul(a, Inv(a)))
			assert.Equal(t, b, Mul(Div(b, a), a), "a=%d b=%d", a, b)
		}
	}
}

func TestSqr(t *testing.T) {
	for a := 0; a < 256; a++ {
		assert.Equal(t, Mul(byte(a), byte(a)), Sqr(byte(a)))
	}
}

func TestDistributivity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		a := byte(rng.Uint32())
		b := byte(rng.Uint32())
		c := byte(rng.Uint32())
		assert.Equal(t, Mul(a, b)^Mul(a, c), Mul(a, b^c))
	}
}

func TestDivByZero(t *testing.T) {
	assert.Equal(t, byte(0), Div(17, 0))
}

func randBytes(t *testing.T, rng *rand.Rand, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rng.Read(b)
	require.NoError(t, err)
	return b
}

func TestAdd(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, n := range []int{0, 1, 3, 8, 15, 16, 63, 64, 100, 1300} {
		dst := randBytes(t, rng, n)
		src := randBytes(t, rng, n)
		want := make([]byte, n)
		for i := range want {
			want[i] = dst[i] ^ src[i]
		}
		Add(dst, src)
		assert.Equal(t, want, dst, "n=%d", n)
	}
}

func TestAddShortSource(t *testing.T) {
	dst := []byte{1, 2, 3, 4}
	Add(dst, []byte{0xff, 0xff})
	assert.Equal(t, []byte{0xfe, 0xfd, 3, 4}, dst)
}

func TestAdd2(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, n := range []int{1, 7, 8, 9, 257} {
		dst := randBytes(t, rng, n)
		a := randBytes(t, rng, n)
		b := randBytes(t, rng, n)
		want := make([]byte, n)
		for i := range want {
			want[i] = dst[i] ^ a[i] ^ b[i]
		}
		Add2(dst, a, b)
		assert.Equal(t, want, dst, "n=%d", n)
	}
}

func TestMulAdd(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, c := range []byte{0, 1, 2, 3, 0x53, 0xff} {
		n := 129
		dst := randBytes(t, rng, n)
		src := randBytes(t, rng, n)
		want := make([]byte, n)
		for i := range want {
			want[i] = dst[i] ^ Mul(c, src[i])
		}
		MulAdd(dst, c, src)
		assert.Equal(t, want, dst, "c=%d", c)
	}
}

func TestDivMem(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for _, d := range []byte{1, 2, 0x8e, 0xff} {
		n := 65
		dst := randBytes(t, rng, n)
		want := make([]byte, n)
		for i := range want {
			want[i] = Div(dst[i], d)
		}
		DivMem(dst, d)
		assert.Equal(t, want, dst, "d=%d", d)
	}
}

func TestAlignedSlice(t *testing.T) {
	for _, n := range []int{1, 16, 31, 32, 33, 4096} {
		s := AlignedSlice(n)
		require.Len(t, s, n)
		assert.Equal(t, n, cap(s))
		assert.Zero(t, uintptr(unsafe.Pointer(&s[0]))&(Alignment-1))
		for _, b := range s {
			assert.Zero(t, b)
		}
	}
}
