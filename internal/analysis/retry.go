package analysis

import (
	"context"
	"math"
	"time"

	"github.com/tphakala/capuchin-go/internal/logger"
)

// RetryConfig holds the retry behaviour for delivery of results to
// external services.
type RetryConfig struct {
	MaxRetries   int           // retries after the first attempt
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // upper bound for any delay
	Multiplier   float64       // backoff multiplier per retry
}

// defaultRetryConfig suits a command-line run: a few quick retries.
func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// backoffDelay returns the delay before retry number attempt (0-based).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	return time.Duration(backoff)
}

// withRetry runs fn until it succeeds, retries are exhausted or ctx is done.
// It returns the last error.
func withRetry(ctx context.Context, cfg RetryConfig, operation string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		delay := backoffDelay(cfg, attempt)
		GetLogger().Warn("operation failed, retrying",
			logger.String("operation", operation),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
