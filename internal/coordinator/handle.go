package coordinator

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"adc-acquisition/internal/domain"
)

// Handle is the pending outcome of one enqueued request.
type Handle struct {
	req       domain.SampleRequest
	converter string

	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	// guarded by the coordinator mutex
	queue      *queue
	elem       *list.Element
	dispatched bool

	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
	result    domain.SampleResult
	err       error

	owner *Coordinator
}

func newHandle(ctx context.Context, req domain.SampleRequest, converter string, owner *Coordinator) *Handle {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Handle{
		req:       req,
		converter: converter,
		ctx:       hctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		owner:     owner,
	}
}

// Request returns the request the handle was created for.
func (h *Handle) Request() domain.SampleRequest { return h.req }

// Done is closed once the outcome is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the request completes and returns its outcome.
func (h *Handle) Result() (domain.SampleResult, error) {
	<-h.done
	return h.result, h.err
}

// Wait blocks until the request completes or ctx is done. In the latter case
// the request is cancelled and ErrTimeout or ErrCancelled is returned,
// depending on why ctx ended.
func (h *Handle) Wait(ctx context.Context) (domain.SampleResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
	}

	select {
	case <-h.done:
		return h.result, h.err
	default:
	}

	h.Cancel()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.SampleResult{}, domain.ErrTimeout
	}
	return domain.SampleResult{}, domain.ErrCancelled
}

// Cancel withdraws the request. A queued request completes immediately with
// ErrCancelled. A request whose read is already running completes with
// ErrCancelled when the read returns; its reading is discarded.
func (h *Handle) Cancel() {
	if h.owner == nil {
		h.complete(domain.SampleResult{}, domain.ErrCancelled)
		return
	}
	h.owner.withdraw(h, domain.ErrCancelled)
}

func (h *Handle) complete(result domain.SampleResult, err error) {
	h.once.Do(func() {
		if h.timer != nil {
			h.timer.Stop()
		}
		h.result, h.err = result, err
		h.cancel()
		close(h.done)
	})
}
