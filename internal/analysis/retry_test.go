package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	attempts := 0
	err := withRetry(context.Background(), cfg, "test", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("attempt %d failed", attempts)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = withRetry(context.Background(), cfg, "test", func(context.Context) error {
		attempts++
		return fmt.Errorf("attempt %d failed", attempts)
	})
	require.EqualError(t, err, "attempt 4 failed")
	assert.Equal(t, 4, attempts)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := withRetry(ctx, RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}, "test",
		func(context.Context) error {
			attempts++
			return fmt.Errorf("failed")
		})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, backoffDelay(cfg, 0))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(cfg, 2))
	assert.Equal(t, time.Second, backoffDelay(cfg, 10))
}

func TestProgressHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short.wav", truncateFilename("/data/short.wav"))
	long := truncateFilename("/data/" + strings.Repeat("x", 40) + ".wav")
	assert.Len(t, long, 30)
	assert.True(t, strings.HasSuffix(long, "..."))

	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m05s", formatDuration(125*time.Second))

	assert.Empty(t, estimateTimeRemaining(time.Now(), 0, 10))
	assert.Empty(t, estimateTimeRemaining(time.Now(), 10, 10))
	assert.Contains(t, estimateTimeRemaining(time.Now().Add(-time.Second), 5, 10), "remaining")
}
