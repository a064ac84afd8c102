package models

import (
	"time"

	"github.com/ananyasub/argus/internal/similarity"
)

type Step string

const (
	StepIdle      Step = "idle"
	StepInitiated Step = "initiated"
	StepStarted   Step = "started"
	StepIndexing  Step = "indexing"
	StepFiltering Step = "filtering"
	StepComparing Step = "comparing"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// PairResult represents one compared document pair stored in MongoDB
type PairResult struct {
	ScanID        string                         `bson:"scanId" json:"scanId"`
	SiteID        string                         `bson:"siteId" json:"siteId"`
	DocumentA     string                         `bson:"documentA" json:"documentA"`
	DocumentB     string                         `bson:"documentB" json:"documentB"`
	URLA          string                         `bson:"urlA" json:"urlA"`
	URLB          string                         `bson:"urlB" json:"urlB"`
	CSSJaccard    float64                        `bson:"cssJaccard" json:"cssJaccard"`
	HTMLJaccard   float64                        `bson:"htmlJaccard" json:"htmlJaccard"`
	Confidence    string                         `bson:"confidence" json:"confidence"`
	CSSComparison *similarity.PropertyComparison `bson:"cssComparison" json:"cssComparison"`
	CombinedScore float64                        `bson:"combinedScore" json:"combinedScore"`
	Verdict       string                         `bson:"verdict" json:"verdict"`
	CreatedAt     time.Time                      `bson:"createdAt" json:"createdAt"`
}

// ScanReport represents an overall scan report for a site
type ScanReport struct {
	ScanID           string    `bson:"scanId" json:"scanId"`
	SiteID           string    `bson:"siteId" json:"siteId"`
	Risk             string    `bson:"risk" json:"risk"`     // clean, moderate, high, critical
	Status           string    `bson:"status" json:"status"` // pending, completed, failed
	TotalDocuments   int       `bson:"totalDocuments" json:"totalDocuments"`
	CandidatePairs   int       `bson:"candidatePairs" json:"candidatePairs"`
	ComparedPairs    int       `bson:"comparedPairs" json:"comparedPairs"`
	FlaggedPairs     int       `bson:"flaggedPairs" json:"flaggedPairs"`
	HighestScore     float64   `bson:"highestScore" json:"highestScore"`
	FlaggedDocuments []string  `bson:"flaggedDocuments" json:"flaggedDocuments"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}

// ScanRequest represents a request to screen a site's templates
type ScanRequest struct {
	SiteID string `json:"siteId" binding:"required"`
}

// ScanResponse represents the response from the scan endpoint
type ScanResponse struct {
	Step   Step   `json:"step"`
	ScanID string `json:"scanId"`
}

// SimilarDocument represents one LSH candidate returned by the lookup endpoint
type SimilarDocument struct {
	DocumentID string  `json:"documentId"`
	URL        string  `json:"url"`
	Jaccard    float64 `json:"jaccard"`
	Confidence string  `json:"confidence"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
