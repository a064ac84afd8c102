package screening

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	counter *atomic.Int64
}

func (j *countingJob) Execute(context.Context) error {
	j.counter.Add(1)
	return nil
}

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(context.Background())

	var counter atomic.Int64
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(&countingJob{counter: &counter}))
	}

	// Close cancels the pool context, so wait for the queue to drain first.
	assert.Eventually(t, func() bool {
		return counter.Load() == 50
	}, 5*time.Second, 10*time.Millisecond)

	pool.Close()
	assert.GreaterOrEqual(t, pool.Size(), 1)
}

func TestWorkerPoolRejectsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx)
	cancel()

	// Workers observe the cancelled context; submission eventually fails.
	deadline := time.Now().Add(time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = pool.Submit(&countingJob{counter: &atomic.Int64{}}); err != nil {
			break
		}
	}
	assert.Error(t, err)
}
