// Package poller produces periodic sampling batches covering every channel.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Config describes the sampling cadence.
type Config struct {
	Interval time.Duration
	// Channels lists the table positions sampled on every tick.
	Channels []int
}

// Scheduler emits one batch per interval. Each request expires when the
// next tick is due.
type Scheduler struct {
	cfg    Config
	logger Logger
	now    func() time.Time
}

func New(cfg Config, logger Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	cfg.Channels = append([]int(nil), cfg.Channels...)
	return &Scheduler{cfg: cfg, logger: logger, now: time.Now}
}

// AllChannels returns the positions 0..n-1.
func AllChannels(n int) []int {
	channels := make([]int, n)
	for i := range channels {
		channels[i] = i
	}
	return channels
}

// Run emits batches until ctx is cancelled. The output channel is closed
// once scheduling stops.
func (s *Scheduler) Run(ctx context.Context, out chan<- domain.SampleBatch) {
	defer close(out)

	if len(s.cfg.Channels) == 0 {
		s.log(ctx, "poller: no channels configured")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log(ctx, "poller: context cancelled: %v", ctx.Err())
			return
		case <-ticker.C:
		}

		batch := s.newBatch()
		infra.IncSchedulerBatches()

		if !s.sendBatch(ctx, out, batch) {
			return
		}
	}
}

func (s *Scheduler) newBatch() domain.SampleBatch {
	now := s.now()
	deadline := now.Add(s.cfg.Interval)

	requests := make([]domain.SampleRequest, len(s.cfg.Channels))
	for i, channel := range s.cfg.Channels {
		requests[i] = domain.SampleRequest{
			ID:        uuid.NewString(),
			Channel:   channel,
			Deadline:  deadline,
			Submitted: now,
		}
	}
	return domain.SampleBatch{ID: uuid.NewString(), Requests: requests}
}

func (s *Scheduler) sendBatch(ctx context.Context, out chan<- domain.SampleBatch, batch domain.SampleBatch) bool {
	select {
	case <-ctx.Done():
		s.log(ctx, "poller: stopping before delivering batch %s: %v", batch.ID, ctx.Err())
		return false
	case out <- batch:
		return true
	}
}

func (s *Scheduler) log(ctx context.Context, format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, v...)
	}
}

var _ domain.SampleScheduler = (*Scheduler)(nil)
