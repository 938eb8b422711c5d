// Package acquisition is the caller-facing surface of the subsystem: it
// submits requests to the coordinator and publishes successful results to the
// result stream.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adc-acquisition/internal/coordinator"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Table is the read-only view of the channel table the service needs.
type Table interface {
	Len() int
	Channels() []domain.ChannelDescriptor
}

// Enqueuer submits requests for arbitration. It is implemented by coordinator.Coordinator.
type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.SampleRequest) *coordinator.Handle
}

// Service orchestrates sampling and access to the result stream.
type Service struct {
	table  Table
	queue  Enqueuer
	repo   domain.SampleRepository
	logger Logger
}

// New creates the service. repo may be nil, in which case results are not kept.
func New(table Table, queue Enqueuer, repo domain.SampleRepository, logger Logger) *Service {
	return &Service{table: table, queue: queue, repo: repo, logger: logger}
}

// Sample reads the channel at the zero-based table position. A zero deadline
// waits as long as ctx allows.
func (s *Service) Sample(ctx context.Context, channel int, deadline time.Time) (domain.SampleResult, error) {
	return s.Submit(ctx, domain.SampleRequest{Channel: channel, Deadline: deadline})
}

// Submit runs a prepared request, assigning an ID and submission time when missing.
func (s *Service) Submit(ctx context.Context, req domain.SampleRequest) (domain.SampleResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Submitted.IsZero() {
		req.Submitted = time.Now()
	}

	result, err := s.queue.Enqueue(ctx, req).Wait(ctx)
	infra.RecordSample(req.Channel, Outcome(err))
	if err != nil {
		s.log(ctx, "acquisition: request %s channel %d: %v", req.ID, req.Channel, err)
		return domain.SampleResult{}, err
	}

	if s.repo != nil {
		if err := s.repo.Add(ctx, result); err != nil {
			s.log(ctx, "acquisition: failed to store request %s: %v", req.ID, err)
		}
	}
	return result, nil
}

func (s *Service) ChannelCount() int {
	return s.table.Len()
}

func (s *Service) Channels() []domain.ChannelDescriptor {
	return s.table.Channels()
}

// Latest returns the most recent stored result of the channel.
func (s *Service) Latest(ctx context.Context, channel int) (domain.SampleResult, error) {
	if err := s.checkChannel(channel); err != nil {
		return domain.SampleResult{}, err
	}
	if s.repo == nil {
		return domain.SampleResult{}, domain.ErrNotFound
	}
	return s.repo.Latest(ctx, channel)
}

// History returns the stored results of the channel within [from, to].
func (s *Service) History(ctx context.Context, channel int, from, to time.Time) ([]domain.SampleResult, error) {
	if err := s.checkChannel(channel); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.History(ctx, channel, from, to)
}

func (s *Service) checkChannel(channel int) error {
	if channel < 0 || channel >= s.table.Len() {
		return fmt.Errorf("%w: position %d of %d", domain.ErrInvalidChannel, channel, s.table.Len())
	}
	return nil
}

func (s *Service) log(ctx context.Context, format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, v...)
	}
}

// Outcome labels a request result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidChannel):
		return "invalid_channel"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrClosed):
		return "closed"
	default:
		return "failed"
	}
}

var _ domain.AcquisitionService = (*Service)(nil)
