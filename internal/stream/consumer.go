package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ananyasub/argus/internal/screening"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	readBatchSize  = 10
	readBlock      = time.Second
	claimBatchSize = 50

	// staleAfter is how long a pending entry may sit unacked with another
	// consumer before this one takes it over.
	staleAfter = time.Minute

	claimInterval = 30 * time.Second
	trimInterval  = time.Hour
)

// Consumer reads template submissions off a Redis stream as part of a
// consumer group and feeds them into ingestion. Entries left pending by a
// crashed or stalled replica are reclaimed via XAUTOCLAIM, and the stream
// is trimmed to a retention window in the background.
type Consumer struct {
	client    *redis.Client
	stream    string
	group     string
	name      string
	ingestor  *screening.Ingestor
	retry     *RetryHandler
	retention time.Duration
}

func NewConsumer(
	client *redis.Client,
	streamKey string,
	consumerGroup string,
	consumerName string,
	ingestor *screening.Ingestor,
	retryHandler *RetryHandler,
	retentionDuration time.Duration,
) *Consumer {
	return &Consumer{
		client:    client,
		stream:    streamKey,
		group:     consumerGroup,
		name:      consumerName,
		ingestor:  ingestor,
		retry:     retryHandler,
		retention: retentionDuration,
	}
}

// Start runs the read loop until ctx is cancelled. Claim and trim sweeps
// run on their own tickers so a slow ingest never starves them.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	go c.claimLoop(ctx)
	go c.trimLoop(ctx)

	log.Info().
		Str("stream", c.stream).
		Str("group", c.group).
		Str("consumer", c.name).
		Msg("Stream consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := c.readBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to read stream batch")
			time.Sleep(time.Second)
			continue
		}

		for i := range entries {
			c.handleEntry(ctx, &entries[i])
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	switch {
	case err == nil:
		log.Info().Str("group", c.group).Str("stream", c.stream).Msg("Created consumer group")
		return nil
	case strings.Contains(err.Error(), "BUSYGROUP"):
		return nil
	default:
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
}

func (c *Consumer) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var entries []redis.XMessage
	for _, s := range streams {
		if s.Stream == c.stream {
			entries = append(entries, s.Messages...)
		}
	}
	return entries, nil
}

// handleEntry ingests one stream entry. Entries that can never succeed
// (malformed, or exhausted all retries into the dead letter stream) are
// acked so they stop circulating; the dead letter copy preserves them.
func (c *Consumer) handleEntry(ctx context.Context, msg *redis.XMessage) {
	fields := make(map[string]string, len(msg.Values))
	for key, val := range msg.Values {
		if s, ok := val.(string); ok {
			fields[key] = s
		}
	}

	sub, err := ParseSubmission(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping malformed stream entry")
		c.ack(ctx, msg.ID)
		return
	}

	raw := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		raw[k] = v
	}

	err = c.retry.RetryWithBackoff(ctx, func() error {
		return c.ingestor.Ingest(ctx, sub)
	}, msg.ID, raw)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Giving up on stream entry")
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("Failed to ack stream entry")
	}
}

func (c *Consumer) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()

	// Sweep once immediately to pick up entries a previous run left pending.
	c.claimStale(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.claimStale(ctx)
		}
	}
}

// claimStale walks the pending entries list with XAUTOCLAIM, taking over
// anything idle past staleAfter and processing it like a fresh read.
func (c *Consumer) claimStale(ctx context.Context) {
	cursor := "0-0"
	for {
		entries, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  staleAfter,
			Start:    cursor,
			Count:    claimBatchSize,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Failed to claim stale entries")
			}
			return
		}

		if len(entries) > 0 {
			log.Info().Int("claimed", len(entries)).Msg("Reclaimed stale pending entries")
		}
		for i := range entries {
			c.handleEntry(ctx, &entries[i])
		}

		// A zero cursor means the scan wrapped around; the list is done.
		if next == "0-0" {
			return
		}
		cursor = next
	}
}

func (c *Consumer) trimLoop(ctx context.Context) {
	ticker := time.NewTicker(trimInterval)
	defer ticker.Stop()

	c.trim(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.trim(ctx)
		}
	}
}

// trim drops entries older than the retention window.
func (c *Consumer) trim(ctx context.Context) {
	trimmed, err := c.client.XTrimMinID(ctx, c.stream, retentionCutoffID(time.Now(), c.retention)).Result()
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to trim stream")
		}
		return
	}
	if trimmed > 0 {
		log.Debug().Int64("trimmed", trimmed).Dur("retention", c.retention).Msg("Trimmed expired stream entries")
	}
}

// retentionCutoffID builds the stream ID below which entries have aged out.
// Stream IDs lead with a millisecond timestamp, so the cutoff is just that
// timestamp with a zero sequence.
func retentionCutoffID(now time.Time, retention time.Duration) string {
	return strconv.FormatInt(now.Add(-retention).UnixMilli(), 10) + "-0"
}
