package media

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider and controller failures. Wrap with context
// where raised; check with errors.Is.
var (
	// ErrMediaNotFound is returned when an item cannot be resolved on a
	// provider or in the database.
	ErrMediaNotFound = errors.New("media item not found")
	// ErrLoginFailed marks a provider whose authentication cannot be
	// established. The provider stays unavailable until reloaded.
	ErrLoginFailed = errors.New("login failed")
	// ErrRateLimited is raised when the remote rejects the call due to
	// throttling. Calls are retried with exponential backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable marks a provider that is temporarily down.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUnsupported is returned by operations the provider (or player)
	// does not implement. Callers skip the provider, never fail.
	ErrUnsupported = errors.New("operation not supported")
	// ErrInvalidData marks a malformed provider field. The offending field
	// is dropped; the rest of the entity is still constructed.
	ErrInvalidData = errors.New("invalid data")
	// ErrQueueEmpty is returned for queue operations without items.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrPlayerUnavailable is returned for commands on unavailable players.
	ErrPlayerUnavailable = errors.New("player unavailable")
)

// StreamError is surfaced to a player driver when a queue item cannot be
// streamed; the driver stops the current item and advances the queue.
type StreamError struct {
	QueueItemID string
	Reason      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error for queue item %s: %v", e.QueueItemID, e.Reason)
}

func (e *StreamError) Unwrap() error {
	return e.Reason
}
