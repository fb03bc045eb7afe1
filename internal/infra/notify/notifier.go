// Package notify delivers alert text to a human channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Notifier sends a single alert message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

var (
	ErrTimeout     = errors.New("notify timeout")
	ErrRateLimited = errors.New("notify rate limited")
	ErrRejected    = errors.New("notify rejected")
)

// RateLimitError is returned when the channel asked us to back off.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("notify rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter extracts the back-off hint from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// classifyContext maps a transport error caused by ctx to ErrTimeout.
func classifyContext(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
