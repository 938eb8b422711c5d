package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"adc-acquisition/internal/channeltable"
	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/hardware"
	"adc-acquisition/internal/sampling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedReader blocks reads on one converter until the gate is opened and
// records the order in which channels were read.
type gatedReader struct {
	blocked string
	gate    chan struct{}
	started chan int

	mu    sync.Mutex
	order []int
}

func newGatedReader(blocked string) *gatedReader {
	return &gatedReader{blocked: blocked, gate: make(chan struct{}), started: make(chan int, 64)}
}

func (r *gatedReader) ReadRaw(_ context.Context, d domain.ChannelDescriptor) (uint32, error) {
	r.started <- d.Index
	if d.Converter == r.blocked {
		<-r.gate
	}
	r.mu.Lock()
	r.order = append(r.order, d.Index)
	r.mu.Unlock()
	return 1, nil
}

func (r *gatedReader) open() { close(r.gate) }

func (r *gatedReader) reads() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...)
}

func twoConverterTable(t *testing.T) *channeltable.Table {
	t.Helper()
	table, err := channeltable.New([]domain.ChannelDescriptor{
		{Index: 0, Converter: "adc0", Input: 0, ReferenceVoltage: 3.3, Resolution: 12, Gain: 1},
		{Index: 1, Converter: "adc0", Input: 1, ReferenceVoltage: 3.3, Resolution: 12, Gain: 1},
		{Index: 2, Converter: "adc0", Input: 2, ReferenceVoltage: 3.3, Resolution: 12, Gain: 1},
		{Index: 3, Converter: "adc0", Input: 3, ReferenceVoltage: 3.3, Resolution: 12, Gain: 1},
		{Index: 4, Converter: "adc1", Input: 0, ReferenceVoltage: 1.8, Resolution: 10, Gain: 2},
	})
	require.NoError(t, err)
	return table
}

func newCoordinator(t *testing.T, reader domain.RawReader) *Coordinator {
	t.Helper()
	engine := sampling.NewEngine(twoConverterTable(t), reader, sampling.DefaultConfig(), nil)
	c := New(engine, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitStarted(t *testing.T, r *gatedReader, index int) {
	t.Helper()
	select {
	case got := <-r.started:
		require.Equal(t, index, got)
	case <-time.After(time.Second):
		t.Fatalf("read of channel %d never started", index)
	}
}

func TestEnqueueInvalidChannel(t *testing.T) {
	sim := hardware.NewSimulator()
	c := newCoordinator(t, sim)

	for _, ch := range []int{-1, 5, 100} {
		_, err := c.Enqueue(context.Background(), domain.SampleRequest{Channel: ch}).Result()
		assert.ErrorIs(t, err, domain.ErrInvalidChannel)
	}
	assert.Zero(t, sim.TotalCalls())
}

func TestFIFOPerConverter(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	t.Log("Step 1: occupy adc0 with channel 0")
	first := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)

	t.Log("Step 2: queue channels 3, 1, 2 behind it")
	handles := []*Handle{first}
	for _, ch := range []int{3, 1, 2} {
		handles = append(handles, c.Enqueue(context.Background(), domain.SampleRequest{Channel: ch}))
	}
	assert.Equal(t, 3, c.QueueDepth("adc0"))

	t.Log("Step 3: release the converter and check service order")
	reader.open()
	for _, h := range handles {
		_, err := h.Result()
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 3, 1, 2}, reader.reads())
	assert.Zero(t, c.QueueDepth("adc0"))
}

func TestDistinctConvertersAreIndependent(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	blocked := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)
	for ch := 1; ch < 4; ch++ {
		c.Enqueue(context.Background(), domain.SampleRequest{Channel: ch})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 4}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "adc1", result.Converter)

	select {
	case <-blocked.Done():
		t.Fatal("adc0 request completed while its converter was held")
	default:
	}
	reader.open()
}

func TestQueuedRequestTimesOut(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	first := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)

	t.Log("Step 1: a request with a short deadline waits behind the held converter")
	late := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 1, Deadline: time.Now().Add(20 * time.Millisecond)})
	patient := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 2})

	t.Log("Step 2: it times out without touching the hardware")
	select {
	case <-late.Done():
	case <-time.After(time.Second):
		t.Fatal("queued request did not time out")
	}
	_, err := late.Result()
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 1, c.QueueDepth("adc0"))

	t.Log("Step 3: the other requests are unaffected")
	reader.open()
	_, err = first.Result()
	require.NoError(t, err)
	_, err = patient.Result()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, reader.reads())
}

func TestExpiredRequestIsRejectedAtAdmission(t *testing.T) {
	sim := hardware.NewSimulator()
	c := newCoordinator(t, sim)

	_, err := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0, Deadline: time.Now().Add(-time.Second)}).Result()
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Zero(t, sim.TotalCalls())
}

func TestCancelQueuedRequest(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)

	queued := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 1})
	queued.Cancel()
	_, err := queued.Result()
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Zero(t, c.QueueDepth("adc0"))

	reader.open()
	require.Eventually(t, func() bool { return len(reader.reads()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0}, reader.reads())
}

func TestCancelDispatchedRequestDiscardsResult(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	h := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)

	h.Cancel()
	select {
	case <-h.Done():
		t.Fatal("dispatched request completed before its read returned")
	case <-time.After(20 * time.Millisecond):
	}

	reader.open()
	_, err := h.Result()
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, []int{0}, reader.reads())
}

func TestWaitCancelsOnContext(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)

	queued := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := queued.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	_, err = queued.Result()
	assert.ErrorIs(t, err, domain.ErrCancelled)
	reader.open()
}

func TestCloseFailsQueuedRequests(t *testing.T) {
	reader := newGatedReader("adc0")
	c := newCoordinator(t, reader)

	inflight := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0})
	waitStarted(t, reader, 0)
	queued := c.Enqueue(context.Background(), domain.SampleRequest{Channel: 1})

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()

	_, err := queued.Result()
	assert.ErrorIs(t, err, domain.ErrClosed)

	reader.open()
	_, err = inflight.Result()
	assert.NoError(t, err)
	<-closed

	_, err = c.Enqueue(context.Background(), domain.SampleRequest{Channel: 0}).Result()
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestNoOverlappingReadsUnderStress(t *testing.T) {
	sim := hardware.NewSimulator(hardware.WithLatency(200 * time.Microsecond))
	c := newCoordinator(t, sim)

	const requests = 200
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := c.Enqueue(context.Background(), domain.SampleRequest{Channel: i % 5}).Result()
			if assert.NoError(t, err) {
				assert.Equal(t, i%5, result.Channel)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, sim.Overlaps())
	assert.Equal(t, requests, sim.TotalCalls())
}
