//go:build !linux

package hardware

import "errors"

// OpenMCP is unavailable off Linux.
func OpenMCP(string, MCPConfig) (*MCPReader, error) {
	return nil, errors.New("gpio converters require linux")
}
