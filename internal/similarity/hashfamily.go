package similarity

import (
	"math/bits"
	"sync"
)

const (
	// DefaultNumHashes is the signature length used across the service.
	// Signatures of different lengths are never comparable, so this value
	// must not change between deployments that share persisted signatures.
	DefaultNumHashes = 128

	// mersennePrime is the first prime larger than 2^32, used as the modulus
	// for the universal hash family h(x) = (a*x + b) mod P.
	mersennePrime uint64 = 4294967311

	// familySeed fixes the coefficient sequence so that every process, on
	// every run, builds the identical hash family. Persisted signatures stay
	// comparable across restarts and across independently started instances.
	familySeed uint64 = 0x9747b28c

	// Knuth MMIX linear congruential generator constants.
	lcgMultiplier uint64 = 6364136223846793005
	lcgIncrement  uint64 = 1442695040888963407
)

// HashFamily is an immutable family of pairwise-independent hash functions
// of the form h_i(x) = (a_i*x + b_i) mod P. It is safe for concurrent use.
type HashFamily struct {
	a []uint64
	b []uint64
}

var (
	defaultFamily     *HashFamily
	defaultFamilyOnce sync.Once
)

// DefaultHashFamily returns the process-wide family of DefaultNumHashes
// functions. Initialization happens exactly once, on first use.
func DefaultHashFamily() *HashFamily {
	defaultFamilyOnce.Do(func() {
		defaultFamily = NewHashFamily(DefaultNumHashes, familySeed)
	})
	return defaultFamily
}

// FamilyOfSize returns the deterministic family of n functions built from
// the fixed seed, so differently sized deployments still agree on the
// coefficient sequence. FamilyOfSize(DefaultNumHashes) is DefaultHashFamily.
func FamilyOfSize(n int) *HashFamily {
	if n <= 0 || n == DefaultNumHashes {
		return DefaultHashFamily()
	}
	return NewHashFamily(n, familySeed)
}

// NewHashFamily builds a family of n hash functions with coefficients drawn
// from an LCG seeded with seed. The same (n, seed) pair always yields the
// same family.
func NewHashFamily(n int, seed uint64) *HashFamily {
	if n <= 0 {
		n = DefaultNumHashes
	}

	f := &HashFamily{
		a: make([]uint64, n),
		b: make([]uint64, n),
	}

	state := seed
	for i := 0; i < n; i++ {
		state = state*lcgMultiplier + lcgIncrement
		// a must be nonzero mod P or h collapses to a constant.
		a := state % (mersennePrime - 1)
		f.a[i] = a + 1

		state = state*lcgMultiplier + lcgIncrement
		f.b[i] = state % mersennePrime
	}

	return f
}

// Size returns the number of hash functions in the family.
func (f *HashFamily) Size() int {
	return len(f.a)
}

// Apply evaluates the i-th hash function on x, truncated to 32 bits.
// a*x needs the full 128-bit product: both factors run up to P-1, which is
// just past 2^32, and the plain 64-bit product would wrap.
func (f *HashFamily) Apply(i int, x uint64) uint32 {
	hi, lo := bits.Mul64(f.a[i], x%mersennePrime)
	ax := bits.Rem64(hi, lo, mersennePrime)
	return uint32((ax + f.b[i]) % mersennePrime)
}

// hashString maps a string to an integer in [0, P) using a polynomial
// rolling hash. This is the bridge from shingle strings to the integer
// domain of the hash family.
func hashString(s string) uint64 {
	var h uint64
	for i := 0; i < len(s); i++ {
		h = (h*31 + uint64(s[i])) % mersennePrime
	}
	return h
}
