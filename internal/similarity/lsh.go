package similarity

import (
	"errors"
	"fmt"
	"math"
)

// Default banding parameters. With N=128, 16 bands of 8 rows put the
// collision-curve threshold near similarity 0.7 (roughly 61% candidate
// probability there, falling to 6% at 0.5). Changing B or R moves the
// recall/precision trade-off for the whole index and invalidates previously
// stored band hashes.
const (
	DefaultNumBands    = 16
	DefaultRowsPerBand = 8
)

// ErrBandMismatch is returned when a signature cannot be partitioned into
// the configured bands.
var ErrBandMismatch = errors.New("similarity: signature length is not bands*rows")

// Bander folds signatures into per-band hashes for bucket-based candidate
// retrieval. Two documents sharing any one band hash at the same band index
// are LSH candidates.
type Bander struct {
	bands int
	rows  int
}

// NewBander creates a Bander with the given band count and rows per band.
// Non-positive arguments fall back to the defaults.
func NewBander(bands, rows int) *Bander {
	if bands <= 0 {
		bands = DefaultNumBands
	}
	if rows <= 0 {
		rows = DefaultRowsPerBand
	}
	return &Bander{bands: bands, rows: rows}
}

// Bands returns the number of bands.
func (b *Bander) Bands() int { return b.bands }

// Rows returns the rows per band.
func (b *Bander) Rows() int { return b.rows }

// BandHashes partitions the signature into contiguous bands and folds each
// band into one 32-bit hash with an order-sensitive multiply-add combiner.
// Returns an error when the signature length does not equal bands*rows.
func (b *Bander) BandHashes(sig *Signature) ([]uint32, error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signature", ErrBandMismatch)
	}
	if len(sig.Values) != b.bands*b.rows {
		return nil, fmt.Errorf("%w: have %d values, need %d", ErrBandMismatch, len(sig.Values), b.bands*b.rows)
	}

	hashes := make([]uint32, b.bands)
	for band := 0; band < b.bands; band++ {
		var h uint32
		start := band * b.rows
		for _, v := range sig.Values[start : start+b.rows] {
			h = h*31 + v
		}
		hashes[band] = h
	}
	return hashes, nil
}

// CollisionProbability returns the chance that two documents with the given
// true Jaccard similarity share at least one band hash:
// 1 - (1 - s^rows)^bands.
func (b *Bander) CollisionProbability(similarity float64) float64 {
	if similarity <= 0 {
		return 0
	}
	if similarity >= 1 {
		return 1
	}
	perBand := math.Pow(similarity, float64(b.rows))
	return 1 - math.Pow(1-perBand, float64(b.bands))
}
