package dispatch

import (
	"errors"
	"math"
	"time"

	"github.com/vietddude/nodewatch/internal/infra/notify"
)

// FailureCategory tells the retry loop whether another attempt can help.
type FailureCategory int

const (
	CategoryTransient FailureCategory = iota
	CategoryPermanent
)

// Classifier maps a delivery error to a category.
type Classifier func(err error) FailureCategory

// ClassifyNotifyError treats rejected messages as permanent and everything
// else (timeouts, rate limits, 5xx, transport errors) as transient.
func ClassifyNotifyError(err error) FailureCategory {
	if errors.Is(err, notify.ErrRejected) {
		return CategoryPermanent
	}
	return CategoryTransient
}

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay for the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if we should retry based on the error and attempt count.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoff implements a standard backoff strategy.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Classifier   Classifier
}

// DefaultBackoff returns 2s, 4s, 8s, 16s (max 60s) over 5 attempts.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  5,
		Classifier:   ClassifyNotifyError,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether attempt (the number of attempts made so far)
// may be followed by another one.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	classifier := s.Classifier
	if classifier == nil {
		classifier = ClassifyNotifyError
	}
	return classifier(err) == CategoryTransient
}
