package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"adc-acquisition/internal/domain"
)

const mcpInputs = 8

// MCPConfig names the GPIO chip and line offsets wired to the converter.
type MCPConfig struct {
	Chip string
	Clk  int
	Csz  int
	Di   int
	Do   int
	Tclk time.Duration
}

func (c MCPConfig) withDefaults() MCPConfig {
	if c.Chip == "" {
		c.Chip = "gpiochip0"
	}
	if c.Tclk <= 0 {
		c.Tclk = 500 * time.Nanosecond
	}
	return c
}

// mcpResolution is the native code width of each supported variant.
func mcpResolution(variant string) (uint8, error) {
	switch variant {
	case "mcp3008":
		return 10, nil
	case "mcp3208":
		return 12, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDriver, variant)
}

// mcpDevice is the single-ended conversion of the mcp3w0c driver.
type mcpDevice interface {
	Read(ch int) (uint16, error)
	Close() error
}

// MCPReader drives an MCP3008 or MCP3208 bit-bashed over four GPIO lines.
// Only single-ended inputs at the variant's native resolution are supported:
// the chips' pseudo-differential mode yields an unsigned code, not the signed
// reading a differential channel expects.
type MCPReader struct {
	mu      sync.Mutex
	adc     mcpDevice
	variant string
	bits    uint8
	settle  func(time.Duration)
}

func newMCPReader(variant string, adc mcpDevice) (*MCPReader, error) {
	bits, err := mcpResolution(variant)
	if err != nil {
		return nil, err
	}
	return &MCPReader{adc: adc, variant: variant, bits: bits, settle: time.Sleep}, nil
}

// CheckChannels rejects descriptors the chip cannot convert.
func (r *MCPReader) CheckChannels(channels []domain.ChannelDescriptor) error {
	var errs error
	for _, ch := range channels {
		errs = multierr.Append(errs, r.checkChannel(ch))
	}
	return errs
}

func (r *MCPReader) checkChannel(ch domain.ChannelDescriptor) error {
	switch {
	case ch.Differential:
		return fmt.Errorf("%s: channel %d: differential inputs are not supported", r.variant, ch.Index)
	case ch.Resolution != r.bits:
		return fmt.Errorf("%s: channel %d: resolution %d bits, chip converts %d", r.variant, ch.Index, ch.Resolution, r.bits)
	case ch.Input < 0 || ch.Input >= mcpInputs:
		return fmt.Errorf("%s: channel %d: input %d outside 0..%d", r.variant, ch.Index, ch.Input, mcpInputs-1)
	}
	return nil
}

// ReadRaw waits the channel's acquisition time before each conversion and
// averages 2^Oversampling conversions into one code.
func (r *MCPReader) ReadRaw(ctx context.Context, channel domain.ChannelDescriptor) (uint32, error) {
	if err := contextDone(ctx); err != nil {
		return 0, err
	}
	if err := r.checkChannel(channel); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adc == nil {
		return 0, fmt.Errorf("%s: closed", r.variant)
	}

	samples := uint64(1) << channel.Oversampling
	var sum uint64
	for i := uint64(0); i < samples; i++ {
		if channel.AcquisitionTime > 0 {
			r.settle(channel.AcquisitionTime)
		}
		d, err := r.adc.Read(channel.Input)
		if err != nil {
			return 0, fmt.Errorf("%s: read ch%d: %w", r.variant, channel.Input, err)
		}
		sum += uint64(d)
	}

	code := uint32((sum + samples/2) / samples)
	if err := checkCode(channel, code); err != nil {
		return 0, fmt.Errorf("%s: %w", r.variant, err)
	}
	return code, nil
}

// Ready reports whether the lines are still held; the chip has no status register.
func (r *MCPReader) Ready(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adc == nil {
		return fmt.Errorf("%s: closed", r.variant)
	}
	return nil
}

func (r *MCPReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adc == nil {
		return nil
	}
	err := r.adc.Close()
	r.adc = nil
	return err
}

var (
	_ Reader         = (*MCPReader)(nil)
	_ ChannelChecker = (*MCPReader)(nil)
)
