package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/ananyasub/argus/internal/infra/redis"
	"github.com/ananyasub/argus/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const statusTTL = 12 * time.Hour

func statusKey(scanID string) string {
	return "scan_status:" + scanID
}

func UpdateStatus(ctx context.Context, redisClient *redis.Client, scanID string, step models.Step) error {
	validSteps := map[models.Step]bool{
		models.StepIdle:      true,
		models.StepInitiated: true,
		models.StepStarted:   true,
		models.StepIndexing:  true,
		models.StepFiltering: true,
		models.StepComparing: true,
		models.StepCompleted: true,
		models.StepFailed:    true,
	}
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKey(scanID)

	err := redisClient.Set(ctx, rkey, string(step), statusTTL).Err()
	if err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("scanId", scanID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("step", string(step)).
		Str("scanId", scanID).
		Msg("Status updated in Redis")

	return nil
}

// GetStatus returns the current step of a scan, StepIdle when the status key
// expired or never existed.
func GetStatus(ctx context.Context, redisClient *redis.Client, scanID string) (models.Step, error) {
	val, err := redisClient.Get(ctx, statusKey(scanID)).Result()
	if err == goredis.Nil {
		return models.StepIdle, nil
	}
	if err != nil {
		return models.StepIdle, fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(val), nil
}
