package models

import (
	"time"

	"github.com/ananyasub/argus/internal/similarity"
)

// TemplateSubmission represents a crawled template arriving on the Redis stream
type TemplateSubmission struct {
	DocumentID string `json:"documentId"`
	SiteID     string `json:"siteId"`
	URL        string `json:"url"`
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	TemplateID string `json:"templateId"`
}

// Document represents an indexed web template stored in MongoDB
type Document struct {
	DocumentID   string                `bson:"documentId" json:"documentId"`
	SiteID       string                `bson:"siteId" json:"siteId"`
	URL          string                `bson:"url" json:"url"`
	TemplateID   string                `bson:"templateId" json:"templateId"`
	HTML         string                `bson:"html" json:"html"`
	CSS          string                `bson:"css" json:"css"`
	CSSSignature *similarity.Signature `bson:"cssSignature" json:"cssSignature"`
	HTMLSig      *similarity.Signature `bson:"htmlSignature" json:"htmlSignature"`
	CombinedSig  *similarity.Signature `bson:"combinedSignature" json:"combinedSignature"`
	BandHashes   []uint32              `bson:"bandHashes" json:"bandHashes"`
	CreatedAt    time.Time             `bson:"createdAt" json:"createdAt"`
}
