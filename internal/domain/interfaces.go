package domain

import (
	"context"
	"time"
)

// DescriptionSource supplies the board channel declarations at startup.
type DescriptionSource interface {
	Describe(ctx context.Context) ([]ChannelDescriptor, error)
}

// RawReader performs one blocking conversion on the channel and returns the raw code.
type RawReader interface {
	ReadRaw(ctx context.Context, channel ChannelDescriptor) (uint32, error)
}

// DeviceChecker is implemented by readers that can report converter readiness.
type DeviceChecker interface {
	Ready(ctx context.Context, converter string) error
}

// ChannelLookup resolves zero-based table positions to descriptors.
type ChannelLookup interface {
	Lookup(channel int) (ChannelDescriptor, error)
	Len() int
}

// SampleWriter appends successful results to the result stream.
type SampleWriter interface {
	Add(ctx context.Context, result SampleResult) error
}

// SampleReader queries the result stream.
type SampleReader interface {
	Latest(ctx context.Context, channel int) (SampleResult, error)
	History(ctx context.Context, channel int, from, to time.Time) ([]SampleResult, error)
}

// SampleRepository aggregates the write and read capabilities of the result stream.
type SampleRepository interface {
	SampleWriter
	SampleReader
}

// AcquisitionService describes the behaviour exposed to transport layers.
type AcquisitionService interface {
	Sample(ctx context.Context, channel int, deadline time.Time) (SampleResult, error)
	ChannelCount() int
	Channels() []ChannelDescriptor
	Latest(ctx context.Context, channel int) (SampleResult, error)
	History(ctx context.Context, channel int, from, to time.Time) ([]SampleResult, error)
}

// SampleScheduler produces request batches on a fixed cadence.
type SampleScheduler interface {
	Run(ctx context.Context, out chan<- SampleBatch)
}

// WorkerPool consumes scheduled batches and submits them through the service.
type WorkerPool interface {
	Run(ctx context.Context, batches <-chan SampleBatch)
}
