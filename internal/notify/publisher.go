package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/pkg/jobs"
)

// QueuedPublisher announces table changes through a background job queue so
// write paths never block on the broker. Publish failures are retried by the
// queue and otherwise dropped; the feed is best-effort by contract.
type QueuedPublisher struct {
	broker Broker
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueuedPublisher builds a publisher backed by the given broker.
func NewQueuedPublisher(broker Broker, workers int, logger *zap.Logger) *QueuedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &QueuedPublisher{broker: broker, logger: logger}
	p.queue = jobs.NewQueue("changefeed", p.handle, jobs.QueueConfig{
		Workers:    workers,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	return p
}

// Start launches the queue workers.
func (p *QueuedPublisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop drains the queue workers.
func (p *QueuedPublisher) Stop() {
	p.queue.Stop()
}

// Announce enqueues a change signal for the table. Never blocks the caller;
// a full queue is logged and the signal dropped.
func (p *QueuedPublisher) Announce(table, scope string) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    table,
		Payload: scope,
	}
	if err := p.queue.Enqueue(job); err != nil {
		p.logger.Warn("change signal dropped", zap.String("table", table), zap.Error(err))
	}
}

func (p *QueuedPublisher) handle(ctx context.Context, job jobs.Job) error {
	scope, _ := job.Payload.(string)
	return p.broker.Publish(ctx, Event{Table: job.Type, Scope: scope, At: time.Now().UTC()})
}
