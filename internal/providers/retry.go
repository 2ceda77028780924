package providers

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/marcelveldt/music-assistant/internal/media"
)

const (
	retryBase     = time.Second
	retryCap      = 30 * time.Second
	retryAttempts = 5
	// DefaultCallTimeout bounds every provider call.
	DefaultCallTimeout = 30 * time.Second
)

// WithRetry runs fn under the provider failure policy: rate-limited calls
// back off exponentially (base 1s, cap 30s, 5 attempts), transient
// unavailability is retried once, everything else surfaces immediately.
func WithRetry(ctx context.Context, logger hclog.Logger, fn func(ctx context.Context) error) error {
	var err error
	transientRetried := false
	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, DefaultCallTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		switch {
		case errors.Is(err, media.ErrRateLimited):
			logger.Debug("provider rate limited, backing off", "delay", delay, "attempt", attempt+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if delay *= 2; delay > retryCap {
				delay = retryCap
			}
		case errors.Is(err, media.ErrProviderUnavailable) && !transientRetried:
			transientRetried = true
			logger.Debug("provider unavailable, retrying once")
		default:
			return err
		}
	}
	return err
}
