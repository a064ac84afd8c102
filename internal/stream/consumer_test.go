package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionCutoffID(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	assert.Equal(t, "1699913600000-0", retentionCutoffID(now, 24*time.Hour))
	assert.Equal(t, "1700000000000-0", retentionCutoffID(now, 0))
}
