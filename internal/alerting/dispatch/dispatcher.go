// Package dispatch delivers alerts off the polling path with retries.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/notify"
	"github.com/vietddude/nodewatch/internal/monitoring/metrics"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// ErrQueueFull is returned by Enqueue when no slot is free.
var ErrQueueFull = errors.New("dispatch queue full")

// Job is one alert to deliver.
type Job struct {
	Key       domain.AlertKey
	Text      string
	DecidedAt time.Time
}

// Recorder is told how each job ended.
type Recorder interface {
	MarkSent(key domain.AlertKey, at time.Time)
	MarkFailed(key domain.AlertKey)
}

// Dispatcher runs a fixed pool of workers draining a buffered queue.
type Dispatcher struct {
	cfg      Config
	notifier notify.Notifier
	recorder Recorder
	backoff  RetryStrategy
	log      *slog.Logger

	queue  chan Job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a dispatcher. Call Start before Enqueue.
func New(cfg Config, notifier notify.Notifier, recorder Recorder, log *slog.Logger) *Dispatcher {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:      cfg,
		notifier: notifier,
		recorder: recorder,
		backoff:  cfg.Backoff(),
		log:      log.With("component", "dispatch"),
		queue:    make(chan Job, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		sleep:    sleepCtx,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.log.Info("Dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Enqueue hands a job to the workers without blocking. On failure the
// recorder is told the job failed so the key becomes eligible again.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.recorder.MarkFailed(job.Key)
		return ErrStopped
	}

	select {
	case d.queue <- job:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		d.recorder.MarkFailed(job.Key)
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn("Dispatch queue full, dropping alert", "key", job.Key.String())
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued jobs to drain. When ctx
// expires first, in-flight sends are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.queue {
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		d.deliver(job)
	}
	d.log.Debug("Dispatch worker exited", "worker", id)
}

func (d *Dispatcher) deliver(job Job) {
	target := d.notifier
	for attempt := 0; ; attempt++ {
		if d.ctx.Err() != nil {
			d.recorder.MarkFailed(job.Key)
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			return
		}

		sendCtx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
		err := target.Send(sendCtx, job.Text)
		cancel()

		if err == nil {
			d.recorder.MarkSent(job.Key, job.DecidedAt)
			metrics.NotificationsTotal.WithLabelValues("sent").Inc()
			d.log.Info("Alert sent", "key", job.Key.String(), "attempts", attempt+1)
			return
		}

		if !d.backoff.ShouldRetry(err, attempt+1) {
			d.recorder.MarkFailed(job.Key)
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			d.log.Error("Alert delivery failed", "key", job.Key.String(), "attempts", attempt+1, "error", err)
			return
		}

		// Channels of a fan-out that already delivered are not sent again.
		target = notify.Pending(target, err)

		delay := d.backoff.GetDelay(attempt)
		if retryAfter, ok := notify.RetryAfter(err); ok && retryAfter > delay {
			delay = retryAfter
		}
		d.log.Warn("Alert delivery failed, retrying", "key", job.Key.String(), "attempt", attempt+1, "delay", delay, "error", err)

		if err := d.sleep(d.ctx, delay); err != nil {
			d.recorder.MarkFailed(job.Key)
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
