package stream

import (
	"fmt"

	"github.com/ananyasub/argus/internal/models"
)

// StreamMessage is one raw entry read from the Redis stream
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseSubmission maps stream fields onto a template submission. The url,
// siteId and at least one of html/css are required; everything else is
// optional.
func ParseSubmission(msg *StreamMessage) (*models.TemplateSubmission, error) {
	sub := &models.TemplateSubmission{
		DocumentID: msg.Fields["documentId"],
		SiteID:     msg.Fields["siteId"],
		URL:        msg.Fields["url"],
		HTML:       msg.Fields["html"],
		CSS:        msg.Fields["css"],
		TemplateID: msg.Fields["templateId"],
	}

	if sub.URL == "" {
		return nil, fmt.Errorf("message %s missing url", msg.ID)
	}
	if sub.SiteID == "" {
		return nil, fmt.Errorf("message %s missing siteId", msg.ID)
	}
	if sub.HTML == "" && sub.CSS == "" {
		return nil, fmt.Errorf("message %s has neither html nor css", msg.ID)
	}

	return sub, nil
}
