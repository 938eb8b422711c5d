package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adc-acquisition/internal/application/acquisition"
	"adc-acquisition/internal/application/poller"
	"adc-acquisition/internal/application/worker"
	"adc-acquisition/internal/board"
	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/coordinator"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/hardware"
	"adc-acquisition/internal/infrastructure/repository/memory"
	"adc-acquisition/internal/sampling"
)

type recordingService struct {
	mu       sync.Mutex
	requests []domain.SampleRequest
	wg       *sync.WaitGroup
	failOn   int
}

func (s *recordingService) Submit(_ context.Context, req domain.SampleRequest) (domain.SampleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wg != nil {
		defer s.wg.Done()
	}

	if req.Channel == s.failOn {
		return domain.SampleResult{}, errors.New("converter fault")
	}

	s.requests = append(s.requests, req)
	return domain.SampleResult{RequestID: req.ID, Channel: req.Channel}, nil
}

func (s *recordingService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func TestPoolProcessesBatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := &recordingService{failOn: -1, wg: &sync.WaitGroup{}}
	service.wg.Add(4)
	pool := worker.New(2, service, nil)

	batches := make(chan domain.SampleBatch)
	done := make(chan struct{})
	go func() {
		pool.Run(ctx, batches)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		batches <- domain.SampleBatch{ID: "batch", Requests: []domain.SampleRequest{{ID: "a", Channel: 0}, {ID: "b", Channel: 1}}}
	}
	close(batches)

	waitWithTimeout(t, service.wg, time.Second)
	waitForDone(t, done)

	assert.Equal(t, 4, service.count())
}

func TestPoolStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.New(1, &recordingService{failOn: -1}, nil)

	batches := make(chan domain.SampleBatch)
	done := make(chan struct{})
	go func() {
		pool.Run(ctx, batches)
		close(done)
	}()

	cancel()
	waitForDone(t, done)
}

func TestPoolContinuesAfterSampleError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := &recordingService{failOn: 0, wg: &sync.WaitGroup{}}
	service.wg.Add(2)
	pool := worker.New(1, service, nil)

	batches := make(chan domain.SampleBatch, 1)
	done := make(chan struct{})
	go func() {
		pool.Run(ctx, batches)
		close(done)
	}()

	batches <- domain.SampleBatch{ID: "batch", Requests: []domain.SampleRequest{{Channel: 0}, {Channel: 1}}}
	close(batches)

	waitWithTimeout(t, service.wg, time.Second)
	waitForDone(t, done)

	assert.Equal(t, 1, service.count())
}

func TestPoolWithoutWorkersDrainsBatches(t *testing.T) {
	t.Parallel()

	service := &recordingService{failOn: -1}
	pool := worker.New(0, service, nil)

	batches := make(chan domain.SampleBatch, 2)
	batches <- domain.SampleBatch{Requests: []domain.SampleRequest{{Channel: 0}}}
	batches <- domain.SampleBatch{Requests: []domain.SampleRequest{{Channel: 1}}}
	close(batches)

	pool.Run(context.Background(), batches)

	assert.Zero(t, service.count())
	assert.Empty(t, batches)
}

func TestScheduledPipelinePublishesResults(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	descriptors, err := board.Default().Describe(ctx)
	require.NoError(t, err)
	table, err := channeltable.New(descriptors)
	require.NoError(t, err)

	sim := hardware.NewSimulator()
	sim.SetCode(0, 2048)
	coord := coordinator.New(sampling.NewEngine(table, sim, sampling.DefaultConfig(), nil), nil)
	defer coord.Close()

	repo := memory.New(0)
	service := acquisition.New(table, coord, repo, nil)

	batches := make(chan domain.SampleBatch)
	scheduler := poller.New(poller.Config{Interval: 10 * time.Millisecond, Channels: poller.AllChannels(table.Len())}, nil)
	go scheduler.Run(ctx, batches)

	done := make(chan struct{})
	go func() {
		worker.New(2, service, nil).Run(ctx, batches)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return repo.Len(0) >= 2 && repo.Len(1) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	latest, err := service.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.65, latest.Value)

	cancel()
	waitForDone(t, done)
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for waitgroup")
	}
}

func waitForDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop in time")
	}
}
