package sampling

import (
	"fmt"
	"math"

	"adc-acquisition/internal/domain"
)

// DefaultPrecision is the number of decimal places kept in calibrated values.
const DefaultPrecision = 4

// Calibrate converts a raw code to volts: raw / 2^bits × reference × gain + offset,
// clamped to the channel bounds and rounded half-to-even to precision decimals.
// Differential channels interpret raw as a two's-complement code over
// 2^(bits-1). A negative precision disables rounding.
func Calibrate(channel domain.ChannelDescriptor, raw uint32, precision int) (float64, error) {
	if raw > channel.MaxCode() {
		return 0, fmt.Errorf("raw code %#x exceeds %d-bit resolution", raw, channel.Resolution)
	}

	code, scale := float64(raw), channel.FullScale()
	if channel.Differential {
		code, scale = float64(signExtend(raw, channel.Resolution)), scale/2
	}

	value := code/scale*channel.ReferenceVoltage*channel.Gain + channel.Offset

	lo, hi := channel.Bounds()
	value = math.Max(lo, math.Min(hi, value))

	return Round(value, precision), nil
}

// Round rounds half-to-even at the given number of decimal places.
func Round(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	scale := math.Pow10(precision)
	return math.RoundToEven(value*scale) / scale
}

func signExtend(raw uint32, bits uint8) int64 {
	if bits == 0 || bits >= 64 {
		return int64(raw)
	}
	sign := uint64(1) << (bits - 1)
	v := uint64(raw)
	if v&sign != 0 {
		return int64(v) - int64(uint64(1)<<bits)
	}
	return int64(v)
}
