package similarity

import (
	"errors"
	"fmt"
)

// Confidence tiers for a similarity estimate. Fewer shingles mean a noisier
// agreement ratio; callers must discount low-confidence results.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	highConfidenceShingles   = 1000
	mediumConfidenceShingles = 100
)

// ErrLengthMismatch is returned when comparing signatures of different
// lengths. Such signatures were built by different hash families or
// configurations and their agreement ratio is meaningless.
var ErrLengthMismatch = errors.New("similarity: signature lengths differ")

// Estimate is the result of comparing two MinHash signatures.
type Estimate struct {
	Jaccard         float64 `json:"jaccard"`
	Confidence      string  `json:"confidence"`
	OverlapEstimate float64 `json:"overlapEstimate"`
}

// EstimateSimilarity compares two signatures position by position. The
// fraction of agreeing positions is the unbiased MinHash estimator of the
// true Jaccard similarity of the underlying shingle sets.
func EstimateSimilarity(a, b *Signature) (Estimate, error) {
	if a == nil || b == nil {
		return Estimate{}, fmt.Errorf("%w: nil signature", ErrLengthMismatch)
	}
	if len(a.Values) != len(b.Values) {
		return Estimate{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a.Values), len(b.Values))
	}
	if len(a.Values) == 0 {
		return Estimate{}, fmt.Errorf("%w: zero-length signatures", ErrLengthMismatch)
	}

	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	jaccard := float64(matches) / float64(len(a.Values))

	minShingles := a.NumShingles
	if b.NumShingles < minShingles {
		minShingles = b.NumShingles
	}

	// Two empty signatures agree everywhere, which says nothing about the
	// documents. The trivial 1.0 still comes back, flagged low-confidence.
	confidence := ConfidenceLow
	switch {
	case minShingles > highConfidenceShingles:
		confidence = ConfidenceHigh
	case minShingles > mediumConfidenceShingles:
		confidence = ConfidenceMedium
	}

	avgShingles := float64(a.NumShingles+b.NumShingles) / 2.0

	return Estimate{
		Jaccard:         jaccard,
		Confidence:      confidence,
		OverlapEstimate: jaccard * avgShingles,
	}, nil
}
