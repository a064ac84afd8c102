package sketch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomNoFalseNegatives(t *testing.T) {
	b := NewBloom(10000, 0.01)

	for i := 0; i < 10000; i++ {
		b.Insert(fmt.Sprintf("item-%d", i))
	}

	for i := 0; i < 10000; i++ {
		require.True(t, b.Contains(fmt.Sprintf("item-%d", i)), "inserted item %d must be found", i)
	}
	assert.Equal(t, uint64(10000), b.Count())
}

func TestBloomFalsePositiveRate(t *testing.T) {
	b := NewBloom(10000, 0.01)
	for i := 0; i < 10000; i++ {
		b.Insert(fmt.Sprintf("item-%d", i))
	}

	falsePositives := 0
	probes := 10000
	for i := 0; i < probes; i++ {
		if b.Contains(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(probes)
	assert.Less(t, rate, 0.05, "observed FP rate %f should stay near the 1%% target", rate)
	assert.InDelta(t, rate, b.EstimatedFPRate(), 0.02)
}

func TestBloomEmpty(t *testing.T) {
	b := NewBloom(1000, 0.01)

	assert.False(t, b.Contains("anything"))
	assert.Zero(t, b.Count())
	assert.Zero(t, b.FillRatio())
	assert.Zero(t, b.EstimatedFPRate())
}

func TestBloomSizingClamps(t *testing.T) {
	tiny := NewBloom(0, 0.5)
	assert.GreaterOrEqual(t, tiny.NumBits(), uint32(64))
	assert.Zero(t, tiny.NumBits()%8)
	assert.GreaterOrEqual(t, tiny.NumHashes(), uint32(1))

	huge := NewBloom(1_000_000_000, 0.000001)
	assert.LessOrEqual(t, huge.NumBits(), uint32(16*1024*1024))
	assert.LessOrEqual(t, huge.NumHashes(), uint32(30))
}

func TestBloomMerge(t *testing.T) {
	a := NewBloom(1000, 0.01)
	b := NewBloom(1000, 0.01)
	a.Insert("only-in-a")
	b.Insert("only-in-b")

	require.NoError(t, a.Merge(b))
	assert.True(t, a.Contains("only-in-a"))
	assert.True(t, a.Contains("only-in-b"))
	assert.Equal(t, uint64(2), a.Count())
}

func TestBloomMergeRejectsMismatch(t *testing.T) {
	a := NewBloom(1000, 0.01)
	b := NewBloom(50000, 0.01)

	assert.ErrorIs(t, a.Merge(b), ErrBloomMismatch)
	assert.ErrorIs(t, a.Merge(nil), ErrBloomMismatch)
}

func TestBloomRoundTrip(t *testing.T) {
	b := NewBloom(1000, 0.01)
	for i := 0; i < 100; i++ {
		b.Insert(fmt.Sprintf("rt-%d", i))
	}

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var decoded Bloom
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.Equal(t, b.NumBits(), decoded.NumBits())
	assert.Equal(t, b.NumHashes(), decoded.NumHashes())
	assert.Equal(t, b.Count(), decoded.Count())
	for i := 0; i < 100; i++ {
		assert.True(t, decoded.Contains(fmt.Sprintf("rt-%d", i)))
	}
}

func TestBloomUnmarshalRejectsGarbage(t *testing.T) {
	var b Bloom

	assert.ErrorIs(t, b.UnmarshalBinary(nil), ErrMalformedBloom)
	assert.ErrorIs(t, b.UnmarshalBinary(make([]byte, 17)), ErrMalformedBloom)

	good, err := NewBloom(100, 0.01).MarshalBinary()
	require.NoError(t, err)
	assert.ErrorIs(t, b.UnmarshalBinary(good[:len(good)-1]), ErrMalformedBloom)

	bad := append([]byte(nil), good...)
	bad[0] = 0xFF
	assert.ErrorIs(t, b.UnmarshalBinary(bad), ErrMalformedBloom)
}
