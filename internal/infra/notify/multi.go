package notify

import (
	"context"
	"errors"
	"fmt"
)

// Multi fans a message out to every member. All members are attempted; if
// any failed a *FanoutError naming them is returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var (
		failed Multi
		errs   []error
	)
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			failed = append(failed, n)
			errs = append(errs, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &FanoutError{Failed: failed, Total: len(m), Err: errors.Join(errs...)}
}

// FanoutError reports the members of a Multi that did not deliver. A retry
// should go to Failed only, so members that succeeded are not sent twice.
type FanoutError struct {
	Failed Multi
	Total  int
	Err    error
}

func (e *FanoutError) Error() string {
	return fmt.Sprintf("%d of %d channels failed: %v", len(e.Failed), e.Total, e.Err)
}

func (e *FanoutError) Unwrap() error {
	return e.Err
}

// Pending returns the notifier a retry of err should use: the failed members
// of a fan-out, or n itself.
func Pending(n Notifier, err error) Notifier {
	var fe *FanoutError
	if errors.As(err, &fe) && len(fe.Failed) > 0 {
		if len(fe.Failed) == 1 {
			return fe.Failed[0]
		}
		return fe.Failed
	}
	return n
}

// Build returns the notifier for the configured channels, falling back to the
// log notifier when none is configured.
func Build(tg TelegramConfig, wh WebhookConfig, fallback *LogNotifier) Notifier {
	var m Multi
	if tg.Enabled() {
		m = append(m, NewTelegramNotifier(tg))
	}
	if wh.Enabled() {
		m = append(m, NewWebhookNotifier(wh))
	}
	switch len(m) {
	case 0:
		return fallback
	case 1:
		return m[0]
	default:
		return m
	}
}
