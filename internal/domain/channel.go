package domain

import "time"

// DefaultConverter is the converter unit assigned to channels that do not name one.
const DefaultConverter = "adc0"

// ChannelDescriptor identifies one physical ADC input as declared by the board.
type ChannelDescriptor struct {
	Index            int
	Name             string
	Converter        string
	Input            int
	Reference        string
	ReferenceVoltage float64
	Resolution       uint8
	Gain             float64
	AcquisitionTime  time.Duration
	Differential     bool
	Oversampling     uint8
	Offset           float64
}

// FullScale is the code count of the channel, 2^Resolution.
func (d ChannelDescriptor) FullScale() float64 {
	return float64(uint64(1) << d.Resolution)
}

// MaxCode is the largest raw code representable at the channel resolution.
func (d ChannelDescriptor) MaxCode() uint32 {
	return uint32((uint64(1) << d.Resolution) - 1)
}

// Range returns the calibrated bounds of the channel before offset correction.
func (d ChannelDescriptor) Range() (float64, float64) {
	span := d.ReferenceVoltage * d.Gain
	if d.Differential {
		return -span, span
	}
	return 0, span
}

// Bounds is Range shifted by the offset: the interval every calibrated value
// of the channel falls in.
func (d ChannelDescriptor) Bounds() (float64, float64) {
	lo, hi := d.Range()
	return lo + d.Offset, hi + d.Offset
}
