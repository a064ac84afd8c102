package sketch

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
)

const (
	// MinPrecision and MaxPrecision bound the register-array exponent.
	// Memory is 2^precision bytes; relative error is 1.04/sqrt(2^precision).
	MinPrecision = 4
	MaxPrecision = 18

	hllMagic   byte = 0xE2
	hllVersion byte = 1

	two32 = float64(1 << 32)
)

var (
	// ErrPrecisionRange is returned for a precision outside [4, 18].
	ErrPrecisionRange = errors.New("sketch: hll precision must be in [4, 18]")

	// ErrPrecisionMismatch is returned when merging sketches of different
	// precision; their register arrays are not compatible.
	ErrPrecisionMismatch = errors.New("sketch: hll precisions differ")

	// ErrMalformedHLL is returned when serialized bytes do not match the
	// declared precision.
	ErrMalformedHLL = errors.New("sketch: malformed hll bytes")
)

// HLL is a HyperLogLog distinct-count estimator. Registers only ever grow,
// which is what makes the harmonic-mean estimate and register-max merging
// correct. Plain data struct; external synchronization (see Manager).
type HLL struct {
	registers []uint8
	precision uint8
}

// NewHLL allocates a sketch with 2^precision one-byte registers.
func NewHLL(precision uint8) (*HLL, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return nil, fmt.Errorf("%w: got %d", ErrPrecisionRange, precision)
	}
	return &HLL{
		registers: make([]uint8, 1<<precision),
		precision: precision,
	}, nil
}

// Precision returns the configured precision.
func (h *HLL) Precision() uint8 { return h.precision }

// Add hashes the item to 64 bits, indexes a register with the top precision
// bits, and raises that register to the observed leading-zero rank if it
// exceeds the current value.
func (h *HLL) Add(item string) {
	x := hash64(item)
	idx := x >> (64 - h.precision)

	// Shift out the index bits and plant a sentinel 1 so the zero count is
	// bounded by the number of remaining bits.
	w := x<<h.precision | 1<<(uint(h.precision)-1)
	rank := uint8(bits.LeadingZeros64(w)) + 1

	if rank > h.registers[idx] {
		h.registers[idx] = rank
	}
}

// Count returns the cardinality estimate: the harmonic-mean raw estimate
// alpha*m^2/sum(2^-reg), with linear counting in the small range and the
// standard correction near 2^32 saturation.
func (h *HLL) Count() uint64 {
	m := float64(len(h.registers))

	sum := 0.0
	zeros := 0
	for _, r := range h.registers {
		sum += math.Exp2(-float64(r))
		if r == 0 {
			zeros++
		}
	}

	raw := alpha(len(h.registers)) * m * m / sum

	if raw <= 2.5*m && zeros > 0 {
		return uint64(math.Round(m * math.Log(m/float64(zeros))))
	}
	if raw > two32/30 {
		return uint64(math.Round(-two32 * math.Log(1-raw/two32)))
	}
	return uint64(math.Round(raw))
}

// Merge takes the element-wise register maximum. Both sketches must share a
// precision.
func (h *HLL) Merge(other *HLL) error {
	if other == nil || h.precision != other.precision {
		return ErrPrecisionMismatch
	}
	for i, r := range other.registers {
		if r > h.registers[i] {
			h.registers[i] = r
		}
	}
	return nil
}

// ErrorRate returns the expected relative standard error, 1.04/sqrt(m).
func (h *HLL) ErrorRate() float64 {
	return 1.04 / math.Sqrt(float64(len(h.registers)))
}

// MarshalBinary encodes the sketch:
// [magic][version][precision][registers...].
func (h *HLL) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 3+len(h.registers))
	buf = append(buf, hllMagic, hllVersion, h.precision)
	buf = append(buf, h.registers...)
	return buf, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary, failing fast
// when the register payload does not match 2^precision.
func (h *HLL) UnmarshalBinary(data []byte) error {
	if len(data) < 3 {
		return ErrMalformedHLL
	}
	if data[0] != hllMagic || data[1] != hllVersion {
		return fmt.Errorf("%w: bad magic or version", ErrMalformedHLL)
	}

	precision := data[2]
	if precision < MinPrecision || precision > MaxPrecision {
		return fmt.Errorf("%w: precision %d out of range", ErrMalformedHLL, precision)
	}
	if len(data) != 3+(1<<precision) {
		return fmt.Errorf("%w: expected %d registers, have %d", ErrMalformedHLL, 1<<precision, len(data)-3)
	}

	h.precision = precision
	h.registers = append([]uint8(nil), data[3:]...)
	return nil
}

// alpha returns the bias-correction constant for m registers: the fixed
// small-m values from Flajolet et al., 0.7213/(1+1.079/m) otherwise.
func alpha(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

// hash64 computes a 64-bit FNV-1a hash with a splitmix64-style finalizer.
// HLL needs well-distributed high bits (register index) and low bits
// (leading-zero rank) alike, which plain FNV does not guarantee.
func hash64(item string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(item))

	v := h.Sum64()
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}
