package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adc-acquisition/internal/domain"
)

// Waveform produces the raw code for the n-th conversion of a channel.
type Waveform func(channel domain.ChannelDescriptor, n int) uint32

// Ramp steps each channel through its code range from a per-channel phase.
func Ramp(channel domain.ChannelDescriptor, n int) uint32 {
	span := uint64(channel.MaxCode()) + 1
	return uint32((uint64(channel.Index)*101 + uint64(n)*37) % span)
}

// Simulator is a deterministic in-memory converter. It also records how
// conversions overlapped so tests can verify converter exclusivity.
type Simulator struct {
	mu       sync.Mutex
	waveform Waveform
	latency  time.Duration
	codes    map[int]uint32
	faults   map[int][]error
	notReady map[string]error
	calls    map[int]int

	active   map[string]int
	inFlight int
	peak     int
	overlaps int
	closed   bool
}

type SimOption func(*Simulator)

// WithLatency makes every conversion block for at least d.
func WithLatency(d time.Duration) SimOption {
	return func(s *Simulator) { s.latency = d }
}

func WithWaveform(w Waveform) SimOption {
	return func(s *Simulator) {
		if w != nil {
			s.waveform = w
		}
	}
}

func NewSimulator(opts ...SimOption) *Simulator {
	s := &Simulator{
		waveform: Ramp,
		codes:    make(map[int]uint32),
		faults:   make(map[int][]error),
		notReady: make(map[string]error),
		calls:    make(map[int]int),
		active:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCode pins the raw code returned for the channel with the given index.
func (s *Simulator) SetCode(index int, raw uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[index] = raw
}

// InjectFaults queues errors returned, in order, by the next conversions of the channel.
func (s *Simulator) InjectFaults(index int, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[index] = append(s.faults[index], errs...)
}

// SetReady marks a converter as unavailable when err is non-nil.
func (s *Simulator) SetReady(converter string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.notReady, converter)
		return
	}
	s.notReady[converter] = err
}

func (s *Simulator) ReadRaw(ctx context.Context, channel domain.ChannelDescriptor) (uint32, error) {
	if err := contextDone(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("simulator: closed")
	}
	n := s.calls[channel.Index]
	s.calls[channel.Index] = n + 1
	s.active[channel.Converter]++
	if s.active[channel.Converter] > 1 {
		s.overlaps++
	}
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	if d := s.conversionTime(channel); d > 0 {
		time.Sleep(d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[channel.Converter]--
	s.inFlight--

	if queued := s.faults[channel.Index]; len(queued) > 0 {
		s.faults[channel.Index] = queued[1:]
		return 0, queued[0]
	}

	raw, pinned := s.codes[channel.Index]
	if !pinned {
		raw = s.waveform(channel, n)
	}
	return raw, nil
}

// conversionTime is the acquisition window of every oversampled conversion,
// or the configured latency when that is longer.
func (s *Simulator) conversionTime(channel domain.ChannelDescriptor) time.Duration {
	d := channel.AcquisitionTime * time.Duration(uint64(1)<<channel.Oversampling)
	if s.latency > d {
		return s.latency
	}
	return d
}

func (s *Simulator) Ready(_ context.Context, converter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.notReady[converter]; err != nil {
		return fmt.Errorf("converter %s not ready: %w", converter, err)
	}
	return nil
}

// Calls returns the number of conversions issued for the channel with the given index.
func (s *Simulator) Calls(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[index]
}

// TotalCalls returns the number of conversions issued on all channels.
func (s *Simulator) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Overlaps counts conversions that started while another was running on the same converter.
func (s *Simulator) Overlaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

// PeakConcurrency is the largest number of conversions observed in flight at once.
func (s *Simulator) PeakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Reader = (*Simulator)(nil)
