// Package board supplies channel declarations to the channel table, either
// compiled in or read from a JSON board file.
package board

import (
	"context"
	"time"

	"adc-acquisition/internal/domain"
)

// StaticSource serves a fixed list of descriptors.
type StaticSource struct {
	Descriptors []domain.ChannelDescriptor
}

func (s StaticSource) Describe(context.Context) ([]domain.ChannelDescriptor, error) {
	out := make([]domain.ChannelDescriptor, len(s.Descriptors))
	copy(out, s.Descriptors)
	return out, nil
}

// Default is the board used when no board file is configured: a 12-bit
// channel on the supply reference and a 10-bit channel on the internal
// 1.8 V reference with gain 2, both on the default converter.
func Default() StaticSource {
	return StaticSource{Descriptors: []domain.ChannelDescriptor{
		{
			Index:            0,
			Name:             "ain0",
			Converter:        domain.DefaultConverter,
			Input:            0,
			Reference:        "vdd",
			ReferenceVoltage: 3.3,
			Resolution:       12,
			Gain:             1,
			AcquisitionTime:  10 * time.Microsecond,
		},
		{
			Index:            1,
			Name:             "ain1",
			Converter:        domain.DefaultConverter,
			Input:            1,
			Reference:        "internal",
			ReferenceVoltage: 1.8,
			Resolution:       10,
			Gain:             2,
			AcquisitionTime:  40 * time.Microsecond,
		},
	}}
}

var _ domain.DescriptionSource = StaticSource{}
