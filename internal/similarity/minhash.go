package similarity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Document type tags carried on signatures. Signatures of different types
// are comparable (the estimator only checks length) but the tag records
// which shingle sources produced the minima.
const (
	DocTypeCSS      = "css"
	DocTypeHTML     = "html"
	DocTypeCombined = "combined"
)

const (
	signatureMagic   byte = 0xA7
	signatureVersion byte = 1
)

var (
	// ErrEmptySignature marks the all-sentinel signature of an empty
	// document. It carries no information and must not drive a verdict.
	ErrEmptySignature = errors.New("similarity: signature computed from empty shingle set")

	// ErrMalformedSignature is returned when serialized bytes do not match
	// the declared layout.
	ErrMalformedSignature = errors.New("similarity: malformed signature bytes")
)

// Signature is a fixed-length MinHash signature. Immutable once computed.
type Signature struct {
	Values      []uint32 `bson:"values" json:"values"`
	NumShingles int      `bson:"numShingles" json:"numShingles"`
	DocType     string   `bson:"docType" json:"docType"`
}

// IsEmpty reports whether the signature came from an empty shingle set.
// Every value sits at the sentinel maximum in that case.
func (s *Signature) IsEmpty() bool {
	return s.NumShingles == 0
}

// MinHasher computes signatures against one immutable hash family.
type MinHasher struct {
	family *HashFamily
}

// NewMinHasher creates a MinHasher over the given family. Passing nil uses
// the process-wide default family.
func NewMinHasher(family *HashFamily) *MinHasher {
	if family == nil {
		family = DefaultHashFamily()
	}
	return &MinHasher{family: family}
}

// NumHashes returns the signature length this hasher produces.
func (m *MinHasher) NumHashes() int {
	return m.family.Size()
}

// Compute builds the MinHash signature of a shingle set. An empty set
// yields the all-sentinel signature; callers must treat it as "no
// information" rather than a valid comparison target.
func (m *MinHasher) Compute(shingles map[string]struct{}, docType string) *Signature {
	n := m.family.Size()
	values := make([]uint32, n)
	for i := range values {
		values[i] = math.MaxUint32
	}

	for sh := range shingles {
		x := hashString(sh)
		for i := 0; i < n; i++ {
			if h := m.family.Apply(i, x); h < values[i] {
				values[i] = h
			}
		}
	}

	return &Signature{
		Values:      values,
		NumShingles: len(shingles),
		DocType:     docType,
	}
}

// ComputeCSS signs a stylesheet from its character shingles united with its
// structural token shingles.
func (m *MinHasher) ComputeCSS(css string, shingleSize int) *Signature {
	set := Shingles(css, shingleSize)
	for sh := range TokenShingles(CSSTokens(css)) {
		set[sh] = struct{}{}
	}
	return m.Compute(set, DocTypeCSS)
}

// ComputeHTML signs markup from its character shingles united with its
// structural token shingles.
func (m *MinHasher) ComputeHTML(html string, shingleSize int) *Signature {
	set := Shingles(html, shingleSize)
	for sh := range TokenShingles(HTMLTokens(html)) {
		set[sh] = struct{}{}
	}
	return m.Compute(set, DocTypeHTML)
}

// ComputeCombined signs a whole template: HTML and CSS shingle sources
// pooled into one set before the core routine runs.
func (m *MinHasher) ComputeCombined(html, css string, shingleSize int) *Signature {
	set := Shingles(html, shingleSize)
	for sh := range Shingles(css, shingleSize) {
		set[sh] = struct{}{}
	}
	for sh := range TokenShingles(HTMLTokens(html)) {
		set[sh] = struct{}{}
	}
	for sh := range TokenShingles(CSSTokens(css)) {
		set[sh] = struct{}{}
	}
	return m.Compute(set, DocTypeCombined)
}

// MarshalBinary encodes the signature in a versioned little-endian layout:
// [magic][version][docType len][docType][numShingles u32][n u32][values...].
func (s *Signature) MarshalBinary() ([]byte, error) {
	if len(s.DocType) > 255 {
		return nil, fmt.Errorf("similarity: doc type too long: %d bytes", len(s.DocType))
	}

	buf := make([]byte, 0, 3+len(s.DocType)+8+4*len(s.Values))
	buf = append(buf, signatureMagic, signatureVersion, byte(len(s.DocType)))
	buf = append(buf, s.DocType...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.NumShingles))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Values)))
	for _, v := range s.Values {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary, failing fast on
// any length or tag mismatch rather than reading out of bounds.
func (s *Signature) UnmarshalBinary(data []byte) error {
	if len(data) < 3 {
		return ErrMalformedSignature
	}
	if data[0] != signatureMagic || data[1] != signatureVersion {
		return fmt.Errorf("%w: bad magic or version", ErrMalformedSignature)
	}

	typeLen := int(data[2])
	offset := 3 + typeLen
	if len(data) < offset+8 {
		return ErrMalformedSignature
	}
	docType := string(data[3:offset])

	numShingles := binary.LittleEndian.Uint32(data[offset:])
	n := binary.LittleEndian.Uint32(data[offset+4:])
	offset += 8

	if len(data) != offset+4*int(n) {
		return fmt.Errorf("%w: expected %d value bytes, have %d", ErrMalformedSignature, 4*n, len(data)-offset)
	}

	values := make([]uint32, n)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(data[offset+4*i:])
	}

	s.Values = values
	s.NumShingles = int(numShingles)
	s.DocType = docType
	return nil
}
