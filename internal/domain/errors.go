package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the board description cannot form a channel table.
	ErrConfiguration = errors.New("channel configuration error")
	// ErrNotFound is returned by table lookups outside the declared channels.
	ErrNotFound = errors.New("channel not found")
	// ErrInvalidChannel is returned to callers that address a channel the table does not hold.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrAcquisitionFailed is returned when the hardware could not deliver a sample.
	ErrAcquisitionFailed = errors.New("acquisition failed")
	// ErrTimeout is returned when a request deadline elapsed before the converter served it.
	ErrTimeout = errors.New("sample request timed out")
	// ErrCancelled is returned when the caller withdrew the request.
	ErrCancelled = errors.New("sample request cancelled")
	// ErrClosed is returned once the coordinator has shut down.
	ErrClosed = errors.New("acquisition coordinator closed")

	// ErrBusy is a transient hardware fault: the converter refused the transaction.
	ErrBusy = errors.New("converter busy")
	// ErrReadTimeout is a transient hardware fault: the conversion did not finish in time.
	ErrReadTimeout = errors.New("converter read timeout")
)

// IsTransient reports whether a raw-read failure may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrReadTimeout)
}

// AcquisitionError carries the attempt count of a failed acquisition.
type AcquisitionError struct {
	Channel  int
	Attempts int
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%v: channel %d after %d attempt(s): %v", ErrAcquisitionFailed, e.Channel, e.Attempts, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	return []error{ErrAcquisitionFailed, e.Err}
}
