// Package notification dispatches alert notifications across email, SMS,
// and webhook channels. Each configured channel has its own bounded queue
// drained by one long-lived worker goroutine, so channels never serialize
// behind each other. There is no separate retry queue: a failed send is
// retried inline by its channel's worker, and later notifications on that
// channel wait until those retries end.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

const queueCapacity = 256

// Notification is one unit of work for a channel's worker pool.
type Notification struct {
	TenantID uuid.UUID
	AlertID  uuid.UUID
	Channel  string // "email", "sms", or "webhook"
	Target   string
	Severity domain.AlertSeverity
	Subject  string
	Body     string
}

// Sender delivers a single notification over one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// FailureRecorder is notified once when a notification exhausts its
// retries. The recorder wired in cmd/ingestion-worker only logs the
// failure; nothing is written to the alert's history and the alert's state
// does not change.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, tenantID, alertID uuid.UUID, channel string, reason string) error
}

// Dispatcher owns one bounded channel and worker goroutine per configured
// Sender. Enqueue on a channel with no Sender configured (e.g. SMS left
// unconfigured) returns an error.
type Dispatcher struct {
	senders   map[string]Sender
	queues    map[string]chan Notification
	failures  FailureRecorder
	logger    *slog.Logger
	stopCh    chan struct{}
}

// New creates a Dispatcher. senders maps a channel name ("email", "sms",
// "webhook") to the Sender implementing it; omit a key to leave that
// channel unconfigured.
func New(senders map[string]Sender, failures FailureRecorder, logger *slog.Logger) *Dispatcher {
	queues := make(map[string]chan Notification, len(senders))
	for channel := range senders {
		queues[channel] = make(chan Notification, queueCapacity)
	}
	return &Dispatcher{
		senders:  senders,
		queues:   queues,
		failures: failures,
		logger:   logger.With("component", "notification_dispatcher"),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns one worker goroutine per configured channel.
func (d *Dispatcher) Start(ctx context.Context) {
	for channel, queue := range d.queues {
		go d.worker(ctx, channel, queue)
	}
}

// Stop signals every worker to exit. Notifications still queued are not
// delivered.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// Enqueue submits n for delivery on its channel. Returns an error if the
// channel has no configured Sender or its queue is full (the queue is sized
// generously; a full queue indicates sustained downstream failure, not a
// transient burst).
func (d *Dispatcher) Enqueue(n Notification) error {
	queue, ok := d.queues[n.Channel]
	if !ok {
		return fmt.Errorf("notification channel %q not configured", n.Channel)
	}
	select {
	case queue <- n:
		return nil
	default:
		return fmt.Errorf("notification queue for channel %q is full", n.Channel)
	}
}

func (d *Dispatcher) worker(ctx context.Context, channel string, queue chan Notification) {
	sender := d.senders[channel]
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case n := <-queue:
			d.deliver(ctx, channel, sender, n)
		}
	}
}

// deliver retries a failed send up to 3 times (1s, 2s, 4s backoff), 4
// attempts in all, recording a failure exactly once if every attempt is
// exhausted.
func (d *Dispatcher) deliver(ctx context.Context, channel string, sender Sender, n Notification) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Second
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	policy := backoff.WithMaxRetries(eb, 3) // 1 initial attempt + 3 retries = 4 total
	policy = backoff.WithContext(policy, ctx)

	err := backoff.Retry(func() error {
		return sender.Send(ctx, n)
	}, policy)
	if err == nil {
		return
	}

	d.logger.Error("notification delivery exhausted retries",
		"channel", channel, "tenant_id", n.TenantID, "alert_id", n.AlertID, "target", n.Target, "error", err)
	if d.failures == nil {
		return
	}
	if recErr := d.failures.RecordFailure(ctx, n.TenantID, n.AlertID, channel, err.Error()); recErr != nil {
		d.logger.Error("failed to record notification failure", "error", recErr)
	}
}
