package sketch

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHLLPrecisionRange(t *testing.T) {
	for _, p := range []uint8{3, 19, 0, 255} {
		_, err := NewHLL(p)
		assert.ErrorIs(t, err, ErrPrecisionRange, "precision %d", p)
	}

	h, err := NewHLL(14)
	require.NoError(t, err)
	assert.Equal(t, uint8(14), h.Precision())
}

func TestHLLEmpty(t *testing.T) {
	h, err := NewHLL(12)
	require.NoError(t, err)
	assert.Zero(t, h.Count())
}

func TestHLLAccuracy(t *testing.T) {
	h, err := NewHLL(14)
	require.NoError(t, err)

	const n = 100000
	for i := 0; i < n; i++ {
		h.Add(fmt.Sprintf("element-%d", i))
	}

	got := float64(h.Count())
	relErr := math.Abs(got-n) / n
	assert.Less(t, relErr, 3*h.ErrorRate(), "estimate %v off by %v", got, relErr)
}

func TestHLLSmallCardinality(t *testing.T) {
	h, err := NewHLL(14)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		h.Add(fmt.Sprintf("s-%d", i))
	}

	// Linear counting keeps tiny cardinalities near exact.
	got := h.Count()
	assert.InDelta(t, 10, float64(got), 2)
}

func TestHLLDuplicatesDoNotInflate(t *testing.T) {
	h, err := NewHLL(12)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		h.Add("same-item")
	}
	assert.Equal(t, uint64(1), h.Count())
}

func TestHLLMerge(t *testing.T) {
	a, err := NewHLL(14)
	require.NoError(t, err)
	b, err := NewHLL(14)
	require.NoError(t, err)

	for i := 0; i < 50000; i++ {
		a.Add(fmt.Sprintf("a-%d", i))
		b.Add(fmt.Sprintf("b-%d", i))
	}
	// Shared elements across both sketches
	for i := 0; i < 10000; i++ {
		a.Add(fmt.Sprintf("shared-%d", i))
		b.Add(fmt.Sprintf("shared-%d", i))
	}

	require.NoError(t, a.Merge(b))

	const trueCount = 110000
	got := float64(a.Count())
	relErr := math.Abs(got-trueCount) / trueCount
	assert.Less(t, relErr, 3*a.ErrorRate())
}

func TestHLLMergeCommutative(t *testing.T) {
	build := func(prefix string, n int) *HLL {
		h, err := NewHLL(12)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			h.Add(fmt.Sprintf("%s-%d", prefix, i))
		}
		return h
	}

	ab := build("x", 5000)
	require.NoError(t, ab.Merge(build("y", 5000)))

	ba := build("y", 5000)
	require.NoError(t, ba.Merge(build("x", 5000)))

	assert.Equal(t, ab.Count(), ba.Count())
}

func TestHLLMergeRejectsMismatch(t *testing.T) {
	a, err := NewHLL(12)
	require.NoError(t, err)
	b, err := NewHLL(14)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Merge(b), ErrPrecisionMismatch)
	assert.ErrorIs(t, a.Merge(nil), ErrPrecisionMismatch)
}

func TestHLLRoundTrip(t *testing.T) {
	h, err := NewHLL(12)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		h.Add(fmt.Sprintf("rt-%d", i))
	}

	data, err := h.MarshalBinary()
	require.NoError(t, err)

	var decoded HLL
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, h.Precision(), decoded.Precision())
	assert.Equal(t, h.Count(), decoded.Count())
}

func TestHLLUnmarshalRejectsGarbage(t *testing.T) {
	var h HLL

	assert.ErrorIs(t, h.UnmarshalBinary(nil), ErrMalformedHLL)
	assert.ErrorIs(t, h.UnmarshalBinary([]byte{0xE2, 1, 20}), ErrMalformedHLL)

	good, err := NewHLL(4)
	require.NoError(t, err)
	data, err := good.MarshalBinary()
	require.NoError(t, err)
	assert.ErrorIs(t, h.UnmarshalBinary(data[:len(data)-1]), ErrMalformedHLL)
}

func TestHLLErrorRate(t *testing.T) {
	h, err := NewHLL(14)
	require.NoError(t, err)
	assert.InDelta(t, 1.04/math.Sqrt(16384), h.ErrorRate(), 1e-12)
}
