package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFamilyDeterministic(t *testing.T) {
	f1 := NewHashFamily(128, 42)
	f2 := NewHashFamily(128, 42)

	require.Equal(t, 128, f1.Size())
	for i := 0; i < f1.Size(); i++ {
		assert.Equal(t, f1.Apply(i, 12345), f2.Apply(i, 12345))
	}
}

func TestHashFamilySeedChangesFamily(t *testing.T) {
	f1 := NewHashFamily(128, 1)
	f2 := NewHashFamily(128, 2)

	differ := 0
	for i := 0; i < f1.Size(); i++ {
		if f1.Apply(i, 999) != f2.Apply(i, 999) {
			differ++
		}
	}
	assert.Greater(t, differ, 100, "different seeds should produce different functions")
}

func TestHashFamilyFunctionsDiffer(t *testing.T) {
	f := DefaultHashFamily()

	seen := make(map[uint32]bool)
	for i := 0; i < f.Size(); i++ {
		seen[f.Apply(i, 777)] = true
	}
	assert.Greater(t, len(seen), 100, "functions in the family should disagree on a fixed input")
}

func TestDefaultHashFamilySingleton(t *testing.T) {
	assert.Same(t, DefaultHashFamily(), DefaultHashFamily())
	assert.Equal(t, DefaultNumHashes, DefaultHashFamily().Size())
}

func TestFamilyOfSize(t *testing.T) {
	assert.Same(t, DefaultHashFamily(), FamilyOfSize(DefaultNumHashes))
	assert.Same(t, DefaultHashFamily(), FamilyOfSize(0))

	small := FamilyOfSize(64)
	require.Equal(t, 64, small.Size())

	// A resized family shares the seed, so its functions match the prefix of
	// any larger family built the same way.
	big := FamilyOfSize(96)
	for i := 0; i < small.Size(); i++ {
		assert.Equal(t, big.Apply(i, 4242), small.Apply(i, 4242))
	}
}

func TestHashFamilyLargeInputsNoOverflow(t *testing.T) {
	f := NewHashFamily(128, 7)

	// Inputs at the top of the modulus range must still evaluate inside the
	// family's arithmetic, not wrap around.
	for _, x := range []uint64{0, 1, mersennePrime - 1, mersennePrime, 1 << 63} {
		for i := 0; i < f.Size(); i++ {
			f.Apply(i, x)
		}
	}
}

func TestHashStringStable(t *testing.T) {
	assert.Equal(t, hashString("abc"), hashString("abc"))
	assert.NotEqual(t, hashString("abc"), hashString("abd"))
	assert.Less(t, hashString("anything at all"), mersennePrime)
}
