package worker

import (
	"context"
	"sync"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

// Logger defines the logging behaviour required by the worker pool.
type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Submitter runs one prepared sample request to completion.
type Submitter interface {
	Submit(ctx context.Context, req domain.SampleRequest) (domain.SampleResult, error)
}

// Pool consumes scheduled batches and submits their requests through the service.
// Requests of one batch are submitted together so that channels on different
// converters are sampled in parallel.
type Pool struct {
	service     Submitter
	workerCount int
	logger      Logger
}

// New creates a pool with the provided service and worker count.
func New(workerCount int, service Submitter, logger Logger) *Pool {
	if workerCount < 0 {
		workerCount = 0
	}
	return &Pool{service: service, workerCount: workerCount, logger: logger}
}

// Run starts the worker pool and blocks until the context is cancelled or the
// batches channel is closed.
func (p *Pool) Run(ctx context.Context, batches <-chan domain.SampleBatch) {
	if p.workerCount == 0 {
		p.drainUntilClosed(ctx, batches)
		return
	}

	var wg sync.WaitGroup
	wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		go func() {
			defer wg.Done()
			infra.WorkerStarted()
			defer infra.WorkerFinished()
			p.workerLoop(ctx, batches)
		}()
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, batches <-chan domain.SampleBatch) {
	for {
		select {
		case <-ctx.Done():
			p.log(ctx, "worker: context cancelled: %v", ctx.Err())
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			p.processBatch(ctx, batch)
		}
	}
}

func (p *Pool) processBatch(ctx context.Context, batch domain.SampleBatch) {
	ctx = infra.WithCorrelationID(ctx, batch.ID)

	var wg sync.WaitGroup
	for _, req := range batch.Requests {
		if ctx.Err() != nil {
			p.log(ctx, "worker: aborting batch %s due to context: %v", batch.ID, ctx.Err())
			break
		}

		wg.Add(1)
		go func(req domain.SampleRequest) {
			defer wg.Done()
			result, err := p.service.Submit(ctx, req)
			if err != nil {
				p.log(ctx, "worker: batch=%s channel=%d request=%s: %v", batch.ID, req.Channel, req.ID, err)
				return
			}
			p.log(ctx, "worker: batch=%s channel=%d value=%g attempts=%d", batch.ID, result.Channel, result.Value, result.Attempts)
		}(req)
	}
	wg.Wait()
}

func (p *Pool) drainUntilClosed(ctx context.Context, batches <-chan domain.SampleBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-batches:
			if !ok {
				return
			}
		}
	}
}

func (p *Pool) log(ctx context.Context, format string, v ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(ctx, format, v...)
}

var _ domain.WorkerPool = (*Pool)(nil)
