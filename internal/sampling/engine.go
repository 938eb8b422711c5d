// Package sampling turns sample requests into calibrated readings. It owns the
// per-converter locks, the retry policy for transient hardware faults and the
// raw-to-volts conversion.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Millisecond
)

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Config bounds the retry policy and the output precision. A zero Precision
// selects DefaultPrecision; a negative one disables rounding.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	Precision   int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.Precision == 0 {
		c.Precision = DefaultPrecision
	}
	return c
}

// DefaultConfig returns three attempts, a 1ms initial backoff and four decimals.
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff, Precision: DefaultPrecision}
}

type Engine struct {
	table  domain.ChannelLookup
	reader domain.RawReader
	locks  *ConverterLocks
	cfg    Config
	logger Logger
}

func NewEngine(table domain.ChannelLookup, reader domain.RawReader, cfg Config, logger Logger) *Engine {
	return &Engine{
		table:  table,
		reader: reader,
		locks:  NewConverterLocks(),
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Descriptor resolves the request channel, failing with ErrInvalidChannel.
func (e *Engine) Descriptor(channel int) (domain.ChannelDescriptor, error) {
	d, err := e.table.Lookup(channel)
	if err != nil {
		return domain.ChannelDescriptor{}, fmt.Errorf("%w: %w", domain.ErrInvalidChannel, err)
	}
	return d, nil
}

// Sample reads the requested channel and returns the calibrated result.
// Transient faults are retried with exponential backoff. The raw read itself
// is never interrupted; cancellation and the request deadline are observed
// while waiting for the converter and between attempts.
func (e *Engine) Sample(ctx context.Context, req domain.SampleRequest) (domain.SampleResult, error) {
	d, err := e.Descriptor(req.Channel)
	if err != nil {
		return domain.SampleResult{}, err
	}

	waitCtx := ctx
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	backoff := e.cfg.Backoff
	for attempt := 1; ; attempt++ {
		if err := waitErr(waitCtx); err != nil {
			return domain.SampleResult{}, err
		}

		raw, err := e.readOnce(ctx, waitCtx, d)
		if err == nil {
			value, calErr := Calibrate(d, raw, e.cfg.Precision)
			if calErr != nil {
				return domain.SampleResult{}, &domain.AcquisitionError{Channel: req.Channel, Attempts: attempt, Err: calErr}
			}
			return domain.SampleResult{
				RequestID: req.ID,
				Channel:   req.Channel,
				Index:     d.Index,
				Converter: d.Converter,
				Raw:       raw,
				Value:     value,
				Timestamp: time.Now(),
				Attempts:  attempt,
			}, nil
		}

		if isWaitErr(err) {
			return domain.SampleResult{}, err
		}
		if !domain.IsTransient(err) || attempt >= e.cfg.MaxAttempts {
			e.log(ctx, "sampling: channel %d failed after %d attempt(s): %v", req.Channel, attempt, err)
			return domain.SampleResult{}, &domain.AcquisitionError{Channel: req.Channel, Attempts: attempt, Err: err}
		}

		e.log(ctx, "sampling: channel %d attempt %d: %v, retrying in %s", req.Channel, attempt, err, backoff)
		if err := sleep(waitCtx, backoff); err != nil {
			return domain.SampleResult{}, err
		}
		backoff *= 2
	}
}

// readOnce holds the converter lock for exactly one raw read.
func (e *Engine) readOnce(ctx, waitCtx context.Context, d domain.ChannelDescriptor) (uint32, error) {
	release, err := e.locks.Acquire(waitCtx, d.Converter)
	if err != nil {
		return 0, waitErr(waitCtx)
	}

	raw, err := e.reader.ReadRaw(context.WithoutCancel(ctx), d)
	release()

	switch {
	case err == nil:
		infra.RecordReadAttempt(d.Converter, "ok")
	case domain.IsTransient(err):
		infra.RecordReadAttempt(d.Converter, "transient")
	default:
		infra.RecordReadAttempt(d.Converter, "error")
	}
	return raw, err
}

func (e *Engine) log(ctx context.Context, format string, v ...any) {
	if e.logger != nil {
		e.logger.Printf(ctx, format, v...)
	}
}

// waitErr maps a finished wait context to the request outcome.
func waitErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout
	default:
		return domain.ErrCancelled
	}
}

func isWaitErr(err error) bool {
	return errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrCancelled)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return waitErr(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return waitErr(ctx)
	}
}
