package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmission(t *testing.T) {
	msg := &StreamMessage{
		ID: "1-0",
		Fields: map[string]string{
			"documentId": "doc-1",
			"siteId":     "site-1",
			"url":        "https://example.com/a",
			"html":       "<main></main>",
			"css":        ".a { color: red; margin: 0; }",
			"templateId": "tmpl-9",
		},
	}

	sub, err := ParseSubmission(msg)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", sub.DocumentID)
	assert.Equal(t, "site-1", sub.SiteID)
	assert.Equal(t, "tmpl-9", sub.TemplateID)
}

func TestParseSubmissionValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing url", map[string]string{"siteId": "s", "html": "<p>x</p>"}},
		{"missing siteId", map[string]string{"url": "u", "html": "<p>x</p>"}},
		{"no content", map[string]string{"url": "u", "siteId": "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubmission(&StreamMessage{ID: "1-0", Fields: tt.fields})
			assert.Error(t, err)
		})
	}
}

func TestParseSubmissionCSSOnly(t *testing.T) {
	sub, err := ParseSubmission(&StreamMessage{
		ID: "2-0",
		Fields: map[string]string{
			"siteId": "s",
			"url":    "https://example.com/styles",
			"css":    ".a { color: red; margin: 0; }",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, sub.HTML)
	assert.NotEmpty(t, sub.CSS)
}
