package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"adc-acquisition/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMCP struct {
	codes  []uint16
	reads  []int
	err    error
	closed bool
}

func (f *fakeMCP) Read(ch int) (uint16, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.reads = append(f.reads, ch)
	code := f.codes[0]
	if len(f.codes) > 1 {
		f.codes = f.codes[1:]
	}
	return code, nil
}

func (f *fakeMCP) Close() error {
	f.closed = true
	return nil
}

func newTestMCP(t *testing.T, variant string, dev *fakeMCP) (*MCPReader, *[]time.Duration) {
	t.Helper()
	r, err := newMCPReader(variant, dev)
	require.NoError(t, err)
	var settled []time.Duration
	r.settle = func(d time.Duration) { settled = append(settled, d) }
	return r, &settled
}

func TestMCPReaderWaitsAcquisitionTimeBeforeEachConversion(t *testing.T) {
	dev := &fakeMCP{codes: []uint16{100, 101, 102, 104}}
	r, settled := newTestMCP(t, "mcp3208", dev)
	ch := domain.ChannelDescriptor{Converter: "adc0", Input: 5, Resolution: 12, AcquisitionTime: 40 * time.Microsecond, Oversampling: 2}

	raw, err := r.ReadRaw(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, uint32(102), raw)
	assert.Equal(t, []int{5, 5, 5, 5}, dev.reads)
	assert.Equal(t, []time.Duration{40 * time.Microsecond, 40 * time.Microsecond, 40 * time.Microsecond, 40 * time.Microsecond}, *settled)
}

func TestMCPReaderSingleConversionWithoutAcquisitionTime(t *testing.T) {
	dev := &fakeMCP{codes: []uint16{1023}}
	r, settled := newTestMCP(t, "mcp3008", dev)

	raw, err := r.ReadRaw(context.Background(), domain.ChannelDescriptor{Input: 0, Resolution: 10})
	require.NoError(t, err)
	assert.Equal(t, uint32(1023), raw)
	assert.Len(t, dev.reads, 1)
	assert.Empty(t, *settled)
}

func TestMCPReaderRejectsUnsupportedChannels(t *testing.T) {
	r, _ := newTestMCP(t, "mcp3008", &fakeMCP{codes: []uint16{0}})

	cases := map[string]domain.ChannelDescriptor{
		"differential": {Index: 0, Input: 0, Resolution: 10, Differential: true},
		"resolution":   {Index: 1, Input: 1, Resolution: 12},
		"input":        {Index: 2, Input: 8, Resolution: 10},
	}
	for name, ch := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, r.CheckChannels([]domain.ChannelDescriptor{ch}))
			_, err := r.ReadRaw(context.Background(), ch)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, r.CheckChannels([]domain.ChannelDescriptor{{Input: 7, Resolution: 10}}))
}

func TestMCPReaderCheckChannelsReportsEveryBadChannel(t *testing.T) {
	r, _ := newTestMCP(t, "mcp3208", &fakeMCP{codes: []uint16{0}})

	err := r.CheckChannels([]domain.ChannelDescriptor{
		{Index: 0, Input: 0, Resolution: 12},
		{Index: 1, Input: 1, Resolution: 10},
		{Index: 2, Input: 2, Resolution: 12, Differential: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel 1")
	assert.Contains(t, err.Error(), "channel 2")
}

func TestMCPReaderReadErrorAndClose(t *testing.T) {
	dev := &fakeMCP{err: errors.New("line released")}
	r, _ := newTestMCP(t, "mcp3208", dev)
	ch := domain.ChannelDescriptor{Input: 0, Resolution: 12}

	_, err := r.ReadRaw(context.Background(), ch)
	assert.ErrorContains(t, err, "line released")

	require.NoError(t, r.Ready(context.Background(), "adc0"))
	require.NoError(t, r.Close())
	assert.True(t, dev.closed)
	assert.Error(t, r.Ready(context.Background(), "adc0"))
	_, err = r.ReadRaw(context.Background(), ch)
	assert.ErrorContains(t, err, "closed")
	assert.NoError(t, r.Close())
}

func TestNewMCPReaderUnknownVariant(t *testing.T) {
	_, err := newMCPReader("mcp3304", &fakeMCP{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
