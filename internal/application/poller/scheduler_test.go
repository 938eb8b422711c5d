package poller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adc-acquisition/internal/application/poller"
	"adc-acquisition/internal/domain"
)

func TestSchedulerProducesBatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := poller.Config{Interval: 5 * time.Millisecond, Channels: poller.AllChannels(3)}
	batches := make(chan domain.SampleBatch, 4)
	go poller.New(cfg, nil).Run(ctx, batches)

	var received []domain.SampleBatch
	timeout := time.After(time.Second)
	for len(received) < 2 {
		select {
		case batch, ok := <-batches:
			require.True(t, ok, "channel closed before receiving batches")
			received = append(received, batch)
		case <-timeout:
			t.Fatal("timeout waiting for batches")
		}
	}
	cancel()

	seen := map[string]bool{}
	for _, batch := range received {
		assert.NotEmpty(t, batch.ID)
		require.Len(t, batch.Requests, 3)
		for i, req := range batch.Requests {
			assert.Equal(t, i, req.Channel)
			assert.NotEmpty(t, req.ID)
			assert.False(t, seen[req.ID], "request ids must be unique")
			seen[req.ID] = true
			assert.Equal(t, cfg.Interval, req.Deadline.Sub(req.Submitted))
		}
	}
}

func TestSchedulerStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan domain.SampleBatch)
	done := make(chan struct{})
	go func() {
		poller.New(poller.Config{Interval: 5 * time.Millisecond, Channels: []int{0}}, nil).Run(ctx, batches)
		close(done)
	}()

	select {
	case <-batches:
	case <-time.After(time.Second):
		t.Fatal("expected a batch before cancellation")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	_, ok := <-batches
	assert.False(t, ok, "expected channel to be closed after scheduler stops")
}

func TestSchedulerWithoutChannelsWaitsForCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	batches := make(chan domain.SampleBatch, 1)

	poller.New(poller.Config{Interval: time.Millisecond}, nil).Run(ctx, batches)

	_, ok := <-batches
	assert.False(t, ok)
}

func TestAllChannels(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, poller.AllChannels(3))
	assert.Empty(t, poller.AllChannels(0))
}
