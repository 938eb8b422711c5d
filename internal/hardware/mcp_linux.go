//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/gpiod"
	"github.com/warthog618/gpiod/spi/mcp3w0c"
)

// OpenMCP requests the lines on the configured chip. variant is mcp3008 or mcp3208.
func OpenMCP(variant string, cfg MCPConfig) (*MCPReader, error) {
	cfg = cfg.withDefaults()
	if _, err := mcpResolution(variant); err != nil {
		return nil, err
	}

	c, err := gpiod.NewChip(cfg.Chip, gpiod.WithConsumer("adc-acquisition"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", variant, err)
	}

	var adc *mcp3w0c.MCP3w0c
	if variant == "mcp3008" {
		adc, err = mcp3w0c.NewMCP3008(c, cfg.Clk, cfg.Csz, cfg.Di, cfg.Do, mcp3w0c.WithTclk(cfg.Tclk))
	} else {
		adc, err = mcp3w0c.NewMCP3208(c, cfg.Clk, cfg.Csz, cfg.Di, cfg.Do, mcp3w0c.WithTclk(cfg.Tclk))
	}
	c.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", variant, err)
	}
	return newMCPReader(variant, adc)
}
