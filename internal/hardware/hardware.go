// Package hardware provides the raw-read primitives the sampling engine drives:
// a deterministic simulator, a line-oriented serial bridge and, on Linux, a
// bit-bashed MCP3008/MCP3208 on GPIO lines.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"adc-acquisition/internal/domain"
)

// Reader is a raw-read primitive that can check converter readiness and be released.
type Reader interface {
	domain.RawReader
	domain.DeviceChecker
	io.Closer
}

// ChannelChecker is implemented by readers that can convert only part of the
// descriptor space. Startup calls it with the whole channel table.
type ChannelChecker interface {
	CheckChannels(channels []domain.ChannelDescriptor) error
}

// ErrUnknownDriver is returned by Open for driver names it does not recognise.
var ErrUnknownDriver = errors.New("unknown hardware driver")

// Options carries the driver-specific settings used by Open.
type Options struct {
	SerialDevice  string
	SerialBaud    int
	SerialTimeout time.Duration

	GPIOChip string
	Clk      int
	Csz      int
	Di       int
	Do       int
	Tclk     time.Duration
}

// Open returns the reader registered under driver: sim, serial, mcp3008 or mcp3208.
func Open(driver string, opts Options) (Reader, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sim":
		return NewSimulator(), nil
	case "serial":
		bridge, err := OpenSerial(SerialConfig{
			Device:      opts.SerialDevice,
			Baud:        opts.SerialBaud,
			ReadTimeout: opts.SerialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return bridge, nil
	case "mcp3008", "mcp3208":
		mcp, err := OpenMCP(strings.ToLower(strings.TrimSpace(driver)), MCPConfig{
			Chip: opts.GPIOChip,
			Clk:  opts.Clk,
			Csz:  opts.Csz,
			Di:   opts.Di,
			Do:   opts.Do,
			Tclk: opts.Tclk,
		})
		if err != nil {
			return nil, err
		}
		return mcp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// checkCode rejects codes wider than the channel resolution.
func checkCode(channel domain.ChannelDescriptor, raw uint32) error {
	if raw > channel.MaxCode() {
		return fmt.Errorf("raw code %#x exceeds %d-bit resolution", raw, channel.Resolution)
	}
	return nil
}

func contextDone(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
