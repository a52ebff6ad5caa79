package jobs

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// task is one dispatched execution request.
type task struct {
	jobID uuid.UUID
	token string
}

// Dispatcher is the in-process executor behind create_job's fire-and-forget
// dispatch. Submission is at-least-once from the caller's point of view; the
// handler's effects are idempotent, so re-dispatch is harmless.
type Dispatcher struct {
	tasks   chan task
	workers int
	handler func(ctx context.Context, jobID uuid.UUID, token string)
	group   *errgroup.Group
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher with a bounded worker pool.
func NewDispatcher(workers int, handler func(ctx context.Context, jobID uuid.UUID, token string), logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tasks:   make(chan task, workers*8),
		workers: workers,
		handler: handler,
		logger:  logger,
	}
}

// Start launches the workers. They run until ctx is cancelled and the task
// channel has drained.
func (d *Dispatcher) Start(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	d.group = group
	for i := 0; i < d.workers; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t, ok := <-d.tasks:
					if !ok {
						return nil
					}
					// Detached context: a worker shutdown mid-job is
					// recovered by the staleness timeout, not by
					// cancellation.
					d.handler(context.Background(), t.jobID, t.token)
				}
			}
		})
	}
}

// Submit enqueues a job execution without waiting for it. A full queue is
// handled by a detached goroutine rather than dropping the task.
func (d *Dispatcher) Submit(jobID uuid.UUID, token string) {
	t := task{jobID: jobID, token: token}
	select {
	case d.tasks <- t:
	default:
		d.logger.Warn("dispatch queue full, submitting asynchronously",
			zap.String("job_id", jobID.String()))
		go func() { d.tasks <- t }()
	}
}

// Wait blocks until the workers exit.
func (d *Dispatcher) Wait() error {
	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}
