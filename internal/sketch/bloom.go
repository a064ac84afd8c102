// Package sketch provides the probabilistic data structures backing
// document ingestion: a Bloom filter for URL-dedup pre-checks and a
// HyperLogLog cardinality estimator, plus a manager that persists them
// through a key-value store.
package sketch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
)

const (
	minBloomBits = 64
	maxBloomBits = 16 * 1024 * 1024 // 16M bits (2MB) is plenty for any namespace here

	minFPRate = 0.0001
	maxFPRate = 0.5

	minHashCount = 1
	maxHashCount = 30

	bloomMagic   byte = 0xB1
	bloomVersion byte = 1
)

var (
	// ErrBloomMismatch is returned when merging filters with different
	// sizing. Bit positions are only compatible between identically
	// parameterized filters.
	ErrBloomMismatch = errors.New("sketch: bloom filters differ in numBits or numHashes")

	// ErrMalformedBloom is returned when serialized bytes do not match the
	// declared metadata.
	ErrMalformedBloom = errors.New("sketch: malformed bloom filter bytes")
)

// Bloom is a bit-array membership filter with no false negatives. It is a
// plain data struct; callers that share one across goroutines synchronize
// externally (see Manager).
type Bloom struct {
	bitsArr   []byte
	numBits   uint32
	numHashes uint32
	count     uint64
}

// NewBloom sizes a filter for expectedItems at the target false-positive
// rate. Inputs are clamped rather than rejected: expectedItems to at least
// 1, fpRate to [0.0001, 0.5], bit count to [64, 16M] rounded up to a byte
// boundary, hash count to [1, 30].
func NewBloom(expectedItems int, fpRate float64) *Bloom {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if fpRate < minFPRate {
		fpRate = minFPRate
	}
	if fpRate > maxFPRate {
		fpRate = maxFPRate
	}

	n := float64(expectedItems)
	m := math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	if m < minBloomBits {
		m = minBloomBits
	}
	if m > maxBloomBits {
		m = maxBloomBits
	}
	numBits := (uint32(m) + 7) / 8 * 8

	k := math.Ceil(float64(numBits) / n * math.Ln2)
	if k < minHashCount {
		k = minHashCount
	}
	if k > maxHashCount {
		k = maxHashCount
	}

	return &Bloom{
		bitsArr:   make([]byte, numBits/8),
		numBits:   numBits,
		numHashes: uint32(k),
	}
}

// NumBits returns the size of the bit array in bits.
func (b *Bloom) NumBits() uint32 { return b.numBits }

// NumHashes returns the number of derived bit positions per item.
func (b *Bloom) NumHashes() uint32 { return b.numHashes }

// Count returns the number of Insert calls.
func (b *Bloom) Count() uint64 { return b.count }

// Insert sets the k bit positions derived from item.
func (b *Bloom) Insert(item string) {
	h1, h2 := baseHashes(item)
	for i := uint32(0); i < b.numHashes; i++ {
		pos := (h1 + uint64(i)*h2) % uint64(b.numBits)
		b.bitsArr[pos/8] |= 1 << (pos % 8)
	}
	b.count++
}

// Contains reports possible membership. False is definitive: the item was
// never inserted. True may be a false positive at roughly the rate returned
// by EstimatedFPRate, so callers still confirm elsewhere before trusting it.
func (b *Bloom) Contains(item string) bool {
	h1, h2 := baseHashes(item)
	for i := uint32(0); i < b.numHashes; i++ {
		pos := (h1 + uint64(i)*h2) % uint64(b.numBits)
		if b.bitsArr[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Merge ORs other into b and sums the counts. Both filters must share
// numBits and numHashes; mismatched filters are rejected, never truncated.
func (b *Bloom) Merge(other *Bloom) error {
	if other == nil || b.numBits != other.numBits || b.numHashes != other.numHashes {
		return ErrBloomMismatch
	}
	for i := range b.bitsArr {
		b.bitsArr[i] |= other.bitsArr[i]
	}
	b.count += other.count
	return nil
}

// EstimatedFPRate returns (1 - e^(-k*n/m))^k for the live parameters.
func (b *Bloom) EstimatedFPRate() float64 {
	k := float64(b.numHashes)
	n := float64(b.count)
	m := float64(b.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// FillRatio returns the fraction of set bits.
func (b *Bloom) FillRatio() float64 {
	set := 0
	for _, bb := range b.bitsArr {
		set += bits.OnesCount8(bb)
	}
	return float64(set) / float64(b.numBits)
}

// MarshalBinary encodes the filter. Raw bits alone cannot reconstruct
// behavior, so the layout carries the metadata too:
// [magic][version][numBits u32][numHashes u32][count u64][bits...].
func (b *Bloom) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 18+len(b.bitsArr))
	buf = append(buf, bloomMagic, bloomVersion)
	buf = binary.LittleEndian.AppendUint32(buf, b.numBits)
	buf = binary.LittleEndian.AppendUint32(buf, b.numHashes)
	buf = binary.LittleEndian.AppendUint64(buf, b.count)
	buf = append(buf, b.bitsArr...)
	return buf, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary, failing fast
// when the payload length does not match the declared numBits.
func (b *Bloom) UnmarshalBinary(data []byte) error {
	if len(data) < 18 {
		return ErrMalformedBloom
	}
	if data[0] != bloomMagic || data[1] != bloomVersion {
		return fmt.Errorf("%w: bad magic or version", ErrMalformedBloom)
	}

	numBits := binary.LittleEndian.Uint32(data[2:])
	numHashes := binary.LittleEndian.Uint32(data[6:])
	count := binary.LittleEndian.Uint64(data[10:])

	if numBits < minBloomBits || numBits%8 != 0 {
		return fmt.Errorf("%w: invalid numBits %d", ErrMalformedBloom, numBits)
	}
	if len(data) != 18+int(numBits/8) {
		return fmt.Errorf("%w: expected %d payload bytes, have %d", ErrMalformedBloom, numBits/8, len(data)-18)
	}

	b.numBits = numBits
	b.numHashes = numHashes
	b.count = count
	b.bitsArr = append([]byte(nil), data[18:]...)
	return nil
}

// baseHashes computes two independent 64-bit hashes of item using the two
// FNV-1 variants. The second hash is forced odd so its step through the
// even-sized bit array hits every position.
func baseHashes(item string) (uint64, uint64) {
	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(item))

	h2 := fnv.New64()
	_, _ = h2.Write([]byte(item))

	return h1.Sum64(), h2.Sum64() | 1
}
