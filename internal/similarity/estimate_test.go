package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateIdenticalSignatures(t *testing.T) {
	m := NewMinHasher(nil)
	sig := m.Compute(makeShingles("same", 1500), DocTypeCSS)

	est, err := EstimateSimilarity(sig, sig)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.Jaccard)
	assert.Equal(t, ConfidenceHigh, est.Confidence)
	assert.InDelta(t, 1500.0, est.OverlapEstimate, 1e-9)
}

func TestEstimateRejectsMismatch(t *testing.T) {
	a := &Signature{Values: make([]uint32, 128)}
	b := &Signature{Values: make([]uint32, 64)}

	_, err := EstimateSimilarity(a, b)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = EstimateSimilarity(nil, a)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = EstimateSimilarity(&Signature{}, &Signature{})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEstimateSymmetric(t *testing.T) {
	m := NewMinHasher(nil)
	a := m.Compute(makeShingles("left", 800), DocTypeCSS)
	b := m.Compute(makeShingles("right", 600), DocTypeCSS)

	ab, err := EstimateSimilarity(a, b)
	require.NoError(t, err)
	ba, err := EstimateSimilarity(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab.Jaccard, ba.Jaccard)
	assert.Equal(t, ab.Confidence, ba.Confidence)
	assert.Equal(t, ab.OverlapEstimate, ba.OverlapEstimate)
}

func TestEstimateConfidenceTiers(t *testing.T) {
	m := NewMinHasher(nil)

	tests := []struct {
		name     string
		shingles int
		want     string
	}{
		{"high above 1000", 1500, ConfidenceHigh},
		{"medium above 100", 500, ConfidenceMedium},
		{"low at or below 100", 50, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := m.Compute(makeShingles("c", tt.shingles), DocTypeCSS)
			est, err := EstimateSimilarity(sig, sig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, est.Confidence)
		})
	}
}

func TestEstimateEmptySignaturesLowConfidence(t *testing.T) {
	m := NewMinHasher(nil)
	a := m.Compute(nil, DocTypeCSS)
	b := m.Compute(nil, DocTypeCSS)

	// All-sentinel signatures agree everywhere; the trivial 1.0 must come
	// back flagged low-confidence.
	est, err := EstimateSimilarity(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.Jaccard)
	assert.Equal(t, ConfidenceLow, est.Confidence)
	assert.Zero(t, est.OverlapEstimate)
}

func TestEstimateConfidenceUsesMinimum(t *testing.T) {
	m := NewMinHasher(nil)
	big := m.Compute(makeShingles("big", 2000), DocTypeCSS)
	small := m.Compute(makeShingles("big", 50), DocTypeCSS)

	est, err := EstimateSimilarity(big, small)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, est.Confidence)
}
