// Package coordinator arbitrates sample requests across converter units. Each
// converter has its own FIFO queue drained by one dispatcher goroutine, so
// requests for the same converter never overlap while distinct converters
// proceed independently.
package coordinator

import (
	"container/list"
	"context"
	"sync"
	"time"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

// Sampler performs one acquisition. It is implemented by sampling.Engine.
type Sampler interface {
	Descriptor(channel int) (domain.ChannelDescriptor, error)
	Sample(ctx context.Context, req domain.SampleRequest) (domain.SampleResult, error)
}

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

type queue struct {
	converter string
	pending   *list.List
	wake      chan struct{}
}

type Coordinator struct {
	sampler Sampler
	logger  Logger

	mu     sync.Mutex
	queues map[string]*queue
	closed bool

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closer sync.Once
}

func New(sampler Sampler, logger Logger) *Coordinator {
	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		sampler: sampler,
		logger:  logger,
		queues:  make(map[string]*queue),
		ctx:     ctx,
		stop:    stop,
	}
}

// Enqueue appends the request to its converter queue and returns a handle to
// its outcome. Values carried by ctx reach the sampler; its cancellation does
// not, use Handle.Cancel or Handle.Wait for that.
func (c *Coordinator) Enqueue(ctx context.Context, req domain.SampleRequest) *Handle {
	if req.Submitted.IsZero() {
		req.Submitted = time.Now()
	}

	d, err := c.sampler.Descriptor(req.Channel)
	if err != nil {
		h := newHandle(ctx, req, "", nil)
		h.complete(domain.SampleResult{}, err)
		return h
	}

	h := newHandle(ctx, req, d.Converter, c)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		h.complete(domain.SampleResult{}, domain.ErrClosed)
		return h
	}
	if req.Expired(time.Now()) {
		c.mu.Unlock()
		h.complete(domain.SampleResult{}, domain.ErrTimeout)
		return h
	}

	q := c.queueLocked(d.Converter)
	h.queue = q
	h.elem = q.pending.PushBack(h)
	depth := q.pending.Len()
	if !req.Deadline.IsZero() {
		h.timer = time.AfterFunc(time.Until(req.Deadline), func() {
			c.withdraw(h, domain.ErrTimeout)
		})
	}
	c.mu.Unlock()

	infra.SetQueueDepth(d.Converter, depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return h
}

// queueLocked returns the queue of the converter, starting its dispatcher on first use.
func (c *Coordinator) queueLocked(converter string) *queue {
	q, ok := c.queues[converter]
	if ok {
		return q
	}
	q = &queue{converter: converter, pending: list.New(), wake: make(chan struct{}, 1)}
	c.queues[converter] = q

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatchLoop(q)
	}()
	return q
}

func (c *Coordinator) dispatchLoop(q *queue) {
	for {
		h := c.next(q)
		if h == nil {
			return
		}
		c.dispatch(h)
	}
}

// next pops the head of the queue, blocking while it is empty. It returns nil
// once the coordinator is closed.
func (c *Coordinator) next(q *queue) *Handle {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		if front := q.pending.Front(); front != nil {
			h := q.pending.Remove(front).(*Handle)
			h.elem = nil
			h.dispatched = true
			depth := q.pending.Len()
			c.mu.Unlock()
			infra.SetQueueDepth(q.converter, depth)
			return h
		}
		c.mu.Unlock()

		select {
		case <-q.wake:
		case <-c.ctx.Done():
			return nil
		}
	}
}

func (c *Coordinator) dispatch(h *Handle) {
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.req.Expired(time.Now()) {
		h.complete(domain.SampleResult{}, domain.ErrTimeout)
		return
	}

	result, err := c.sampler.Sample(h.ctx, h.req)
	infra.ObserveAcquisition(h.converter, time.Since(h.req.Submitted))

	if h.cancelled.Load() {
		c.log(h.ctx, "coordinator: request %s cancelled during read, result discarded", h.req.ID)
		h.complete(domain.SampleResult{}, domain.ErrCancelled)
		return
	}
	h.complete(result, err)
}

// withdraw removes a queued request and completes it with reason. For a
// request already dispatched only cancellation is recorded.
func (c *Coordinator) withdraw(h *Handle, reason error) {
	c.mu.Lock()
	if h.elem != nil {
		h.queue.pending.Remove(h.elem)
		h.elem = nil
		depth := h.queue.pending.Len()
		c.mu.Unlock()
		infra.SetQueueDepth(h.converter, depth)
		h.complete(domain.SampleResult{}, reason)
		return
	}
	dispatched := h.dispatched
	c.mu.Unlock()

	if dispatched && reason == domain.ErrCancelled {
		h.cancelled.Store(true)
		h.cancel()
	}
}

// QueueDepth returns the number of requests waiting for the converter.
func (c *Coordinator) QueueDepth(converter string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[converter]; ok {
		return q.pending.Len()
	}
	return 0
}

// Close stops the dispatchers and fails every queued request with ErrClosed.
// Reads already running finish first.
func (c *Coordinator) Close() error {
	c.closer.Do(func() {
		c.mu.Lock()
		c.closed = true
		var pending []*Handle
		for _, q := range c.queues {
			for e := q.pending.Front(); e != nil; e = e.Next() {
				h := e.Value.(*Handle)
				h.elem = nil
				pending = append(pending, h)
			}
			q.pending.Init()
			infra.SetQueueDepth(q.converter, 0)
		}
		c.mu.Unlock()

		c.stop()
		for _, h := range pending {
			h.complete(domain.SampleResult{}, domain.ErrClosed)
		}
		c.wg.Wait()
	})
	return nil
}

func (c *Coordinator) log(ctx context.Context, format string, v ...any) {
	if c.logger != nil {
		c.logger.Printf(ctx, format, v...)
	}
}
