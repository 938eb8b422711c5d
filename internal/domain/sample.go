package domain

import "time"

// SampleRequest asks for one reading of the channel at the given table position.
// A zero Deadline means the request never expires while queued.
type SampleRequest struct {
	ID        string
	Channel   int
	Deadline  time.Time
	Submitted time.Time
}

// Expired reports whether the request deadline has passed at now.
func (r SampleRequest) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && !now.Before(r.Deadline)
}

// SampleResult is a calibrated reading delivered to the caller.
type SampleResult struct {
	RequestID string
	Channel   int
	Index     int
	Converter string
	Raw       uint32
	Value     float64
	Timestamp time.Time
	Attempts  int
}

// SampleBatch groups the requests produced by one scheduler tick.
type SampleBatch struct {
	ID       string
	Requests []SampleRequest
}
