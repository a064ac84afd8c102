package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RetryHandler retries failed message processing with exponential backoff
// and routes messages that exhaust their attempts to a dead letter stream.
type RetryHandler struct {
	client        *redis.Client
	deadLetterKey string
	maxAttempts   int
	baseDelay     time.Duration
}

func NewRetryHandler(client *redis.Client, deadLetterKey string) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxAttempts:   3,
		baseDelay:     500 * time.Millisecond,
	}
}

// RetryWithBackoff runs fn up to maxAttempts times, doubling the delay
// between attempts. When every attempt fails, the original message is
// appended to the dead letter stream and the last error is returned.
func (r *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		log.Warn().
			Err(lastErr).
			Str("message_id", messageID).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("Message processing failed")

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if err := r.sendToDeadLetter(ctx, messageID, fields, lastErr); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to write to dead letter stream")
	}

	return fmt.Errorf("exhausted %d attempts for message %s: %w", r.maxAttempts, messageID, lastErr)
}

func (r *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error) error {
	values := map[string]interface{}{
		"original_id": messageID,
		"error":       cause.Error(),
		"failed_at":   time.Now().Format(time.RFC3339),
	}
	for k, v := range fields {
		values["orig_"+k] = v
	}

	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.deadLetterKey,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to append dead letter entry: %w", err)
	}

	log.Info().
		Str("message_id", messageID).
		Str("dead_letter", r.deadLetterKey).
		Msg("Message moved to dead letter stream")

	return nil
}
