package screening

import (
	"github.com/ananyasub/argus/internal/models"
	"github.com/ananyasub/argus/internal/similarity"
)

// Evidence channel weights for the pair score. The CSS property comparator
// is the strongest evidence; the MinHash estimates are the coarse screen.
const (
	weightCSSJaccard  = 0.35
	weightHTMLJaccard = 0.15
	weightComparator  = 0.50
)

// PipelineResult holds the per-stage scores of one compared pair
type PipelineResult struct {
	CSSEstimate    similarity.Estimate
	HTMLEstimate   similarity.Estimate
	CSSComparison  *similarity.PropertyComparison
	ShortCircuited bool
	FinalScore     float64
	Verdict        string
}

// ComparePair implements the progressive pipeline for one document pair.
// Order: CSS MinHash -> HTML MinHash -> CSS property comparator, cheapest
// evidence first. When the accumulated score plus the maximum the remaining
// stages could add cannot reach minScore, the pair is abandoned early.
func ComparePair(docA, docB *models.Document, th similarity.Thresholds, minScore float64) (*PipelineResult, error) {
	result := &PipelineResult{Verdict: similarity.VerdictDistinct}

	currentScore := 0.0
	remainingMax := weightCSSJaccard + weightHTMLJaccard + weightComparator

	// 1. CSS signature agreement (coarsest, cheapest)
	cssEst, err := similarity.EstimateSimilarity(docA.CSSSignature, docB.CSSSignature)
	if err != nil {
		return nil, err
	}
	result.CSSEstimate = cssEst
	currentScore += cssEst.Jaccard * weightCSSJaccard
	remainingMax -= weightCSSJaccard

	if shouldShortCircuit(currentScore, remainingMax, minScore) {
		result.ShortCircuited = true
		result.FinalScore = currentScore
		return result, nil
	}

	// 2. HTML structural signature agreement
	htmlEst, err := similarity.EstimateSimilarity(docA.HTMLSig, docB.HTMLSig)
	if err != nil {
		return nil, err
	}
	result.HTMLEstimate = htmlEst
	currentScore += htmlEst.Jaccard * weightHTMLJaccard
	remainingMax -= weightHTMLJaccard

	if shouldShortCircuit(currentScore, remainingMax, minScore) {
		result.ShortCircuited = true
		result.FinalScore = currentScore
		return result, nil
	}

	// 3. CSS property comparator (finest, slowest)
	cmp := similarity.ComparePropertiesWith(docA.CSS, docB.CSS, th)
	result.CSSComparison = &cmp
	currentScore += cmp.CombinedScore * weightComparator

	result.FinalScore = currentScore
	result.Verdict = cmp.Verdict

	return result, nil
}

func shouldShortCircuit(currentScore, remainingMax, minScore float64) bool {
	// If current weighted score + max possible from remaining < minScore, stop
	return currentScore+remainingMax < minScore
}
