package hardware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"adc-acquisition/internal/domain"
)

// SerialConfig describes the port of a converter bridge.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// SerialBridge talks to a microcontroller that performs conversions on
// request. Each exchange is one line, tagged with a sequence number that the
// bridge echoes in its reply:
//
//	-> #<seq> READ <converter> <input> <bits> <S|D> <acquisition_us> <oversampling>
//	<- #<seq> OK <code> | BUSY | TIMEOUT | ERR <reason>
//
// PING <converter> answers OK when the converter is initialised. Replies
// whose tag does not match the pending request arrived after their own
// request timed out and are discarded.
type SerialBridge struct {
	mu      sync.Mutex
	port    io.ReadWriter
	closer  io.Closer
	reader  *bufio.Reader
	timeout time.Duration
	seq     uint32
}

type BridgeOption func(*SerialBridge)

// WithReplyTimeout bounds the wait for each reply on ports that support read
// deadlines. tarm/serial ports enforce their own ReadTimeout instead.
func WithReplyTimeout(d time.Duration) BridgeOption {
	return func(b *SerialBridge) { b.timeout = d }
}

// OpenSerial opens the port and returns a bridge on it.
func OpenSerial(cfg SerialConfig) (*SerialBridge, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial bridge: device is required")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return NewSerialBridge(port), nil
}

// NewSerialBridge wraps an already open stream. If port implements io.Closer
// it is closed with the bridge.
func NewSerialBridge(port io.ReadWriter, opts ...BridgeOption) *SerialBridge {
	b := &SerialBridge{port: port, reader: bufio.NewReader(port)}
	if c, ok := port.(io.Closer); ok {
		b.closer = c
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SerialBridge) ReadRaw(ctx context.Context, channel domain.ChannelDescriptor) (uint32, error) {
	if err := contextDone(ctx); err != nil {
		return 0, err
	}

	reply, err := b.exchange(readCommand(channel))
	if err != nil {
		return 0, err
	}

	status, payload, _ := strings.Cut(reply, " ")
	switch status {
	case "OK":
		raw, err := strconv.ParseUint(strings.TrimSpace(payload), 0, 32)
		if err != nil {
			return 0, fmt.Errorf("serial bridge: malformed code %q: %w", payload, err)
		}
		if err := checkCode(channel, uint32(raw)); err != nil {
			return 0, fmt.Errorf("serial bridge: %w", err)
		}
		return uint32(raw), nil
	case "BUSY":
		return 0, domain.ErrBusy
	case "TIMEOUT":
		return 0, domain.ErrReadTimeout
	case "ERR":
		return 0, fmt.Errorf("serial bridge: %s", strings.TrimSpace(payload))
	default:
		return 0, fmt.Errorf("serial bridge: unexpected reply %q", reply)
	}
}

// readCommand renders the READ request. Acquisition time is rounded up to
// whole microseconds so a sub-microsecond setting never reaches the bridge as 0.
func readCommand(channel domain.ChannelDescriptor) string {
	mode := "S"
	if channel.Differential {
		mode = "D"
	}
	acqUS := (channel.AcquisitionTime + time.Microsecond - 1) / time.Microsecond
	return fmt.Sprintf("READ %s %d %d %s %d %d",
		channel.Converter, channel.Input, channel.Resolution, mode, acqUS, channel.Oversampling)
}

func (b *SerialBridge) Ready(ctx context.Context, converter string) error {
	if err := contextDone(ctx); err != nil {
		return err
	}
	reply, err := b.exchange("PING " + converter)
	if err != nil {
		return fmt.Errorf("converter %s not ready: %w", converter, err)
	}
	if reply != "OK" {
		return fmt.Errorf("converter %s not ready: %s", converter, reply)
	}
	return nil
}

func (b *SerialBridge) exchange(command string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	seq := b.seq
	if _, err := fmt.Fprintf(b.port, "#%d %s\n", seq, command); err != nil {
		return "", fmt.Errorf("serial bridge: write: %w", err)
	}

	for {
		line, err := b.readLine()
		if err != nil {
			return "", err
		}
		if reply, ok := matchReply(line, seq); ok {
			return reply, nil
		}
	}
}

func (b *SerialBridge) readLine() (string, error) {
	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	if d, ok := b.port.(deadliner); ok && b.timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(b.timeout))
		defer func() { _ = d.SetReadDeadline(time.Time{}) }()
	}

	line, err := b.reader.ReadString('\n')
	if err != nil {
		// tarm/serial reports an elapsed read timeout as an empty read.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) || errors.Is(err, os.ErrDeadlineExceeded) {
			return "", domain.ErrReadTimeout
		}
		return "", fmt.Errorf("serial bridge: read: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// matchReply strips the sequence tag from line. Lines without a tag are the
// tail of a reply cut short by a timeout.
func matchReply(line string, seq uint32) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	tag, reply, _ := strings.Cut(line[1:], " ")
	n, err := strconv.ParseUint(tag, 10, 32)
	if err != nil || uint32(n) != seq {
		return "", false
	}
	return strings.TrimSpace(reply), true
}

func (b *SerialBridge) Close() error {
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

var _ Reader = (*SerialBridge)(nil)
