// Package channeltable holds the immutable list of ADC channels declared by
// the board. The process-wide table is resolved exactly once at startup and
// read without locking afterwards.
package channeltable

import (
	"context"
	"fmt"
	"sync/atomic"

	"adc-acquisition/internal/domain"
)

// Table is an ordered, fixed-length list of channel descriptors.
type Table struct {
	channels   []domain.ChannelDescriptor
	converters []string
}

var (
	resolved atomic.Bool
	current  atomic.Pointer[Table]
)

// Resolve builds the process-wide table from source. It must be called once;
// a second call panics.
func Resolve(ctx context.Context, source domain.DescriptionSource) (*Table, error) {
	if !resolved.CompareAndSwap(false, true) {
		panic("channeltable: Resolve called more than once")
	}
	if source == nil {
		return nil, fmt.Errorf("%w: no description source", domain.ErrConfiguration)
	}

	descriptors, err := source.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: describe board: %w", domain.ErrConfiguration, err)
	}

	table, err := New(descriptors)
	if err != nil {
		return nil, err
	}
	current.Store(table)
	return table, nil
}

// Default returns the table stored by Resolve.
func Default() *Table {
	table := current.Load()
	if table == nil {
		panic("channeltable: Default called before Resolve")
	}
	return table
}

// New validates descriptors and returns a table without touching the
// process-wide state.
func New(descriptors []domain.ChannelDescriptor) (*Table, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: no channels declared", domain.ErrConfiguration)
	}

	channels := make([]domain.ChannelDescriptor, len(descriptors))
	seen := make(map[int]int, len(descriptors))
	seenConverter := make(map[string]bool)
	var converters []string

	for i, d := range descriptors {
		if prev, dup := seen[d.Index]; dup {
			return nil, fmt.Errorf("%w: channel index %d declared at positions %d and %d", domain.ErrConfiguration, d.Index, prev, i)
		}
		seen[d.Index] = i

		if d.Converter == "" {
			d.Converter = domain.DefaultConverter
		}
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("%w: channel %d: %w", domain.ErrConfiguration, d.Index, err)
		}
		channels[i] = d

		if !seenConverter[d.Converter] {
			seenConverter[d.Converter] = true
			converters = append(converters, d.Converter)
		}
	}

	return &Table{channels: channels, converters: converters}, nil
}

// MaxOversampling bounds the oversampling exponent: at most 2^8 conversions
// are averaged into one code.
const MaxOversampling = 8

func validate(d domain.ChannelDescriptor) error {
	switch {
	case d.Index < 0:
		return fmt.Errorf("negative index %d", d.Index)
	case d.Resolution == 0 || d.Resolution > 32:
		return fmt.Errorf("resolution %d bits outside 1..32", d.Resolution)
	case d.Gain <= 0:
		return fmt.Errorf("gain %v must be positive", d.Gain)
	case d.ReferenceVoltage <= 0:
		return fmt.Errorf("reference voltage %v must be positive", d.ReferenceVoltage)
	case d.AcquisitionTime < 0:
		return fmt.Errorf("negative acquisition time %s", d.AcquisitionTime)
	case d.Oversampling > MaxOversampling:
		return fmt.Errorf("oversampling %d outside 0..%d", d.Oversampling, MaxOversampling)
	case d.Input < 0:
		return fmt.Errorf("negative input %d", d.Input)
	}
	return nil
}

// Lookup returns the descriptor at the zero-based position.
func (t *Table) Lookup(channel int) (domain.ChannelDescriptor, error) {
	if channel < 0 || channel >= len(t.channels) {
		return domain.ChannelDescriptor{}, fmt.Errorf("%w: position %d of %d", domain.ErrNotFound, channel, len(t.channels))
	}
	return t.channels[channel], nil
}

func (t *Table) Len() int {
	return len(t.channels)
}

// Channels returns a copy of the descriptors in declaration order.
func (t *Table) Channels() []domain.ChannelDescriptor {
	out := make([]domain.ChannelDescriptor, len(t.channels))
	copy(out, t.channels)
	return out
}

// Converters lists the distinct converter units in declaration order.
func (t *Table) Converters() []string {
	out := make([]string, len(t.converters))
	copy(out, t.converters)
	return out
}

var _ domain.ChannelLookup = (*Table)(nil)
