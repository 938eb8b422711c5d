package sampling

import (
	"context"
	"sync"
)

// ConverterLocks grants exclusive access to one converter unit at a time.
// Waiting for a lock honours context cancellation.
type ConverterLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewConverterLocks() *ConverterLocks {
	return &ConverterLocks{slots: make(map[string]chan struct{})}
}

func (l *ConverterLocks) slot(converter string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[converter]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[converter] = s
	}
	return s
}

// Acquire blocks until the converter is free or ctx is done. The returned
// release function must be called exactly once.
func (l *ConverterLocks) Acquire(ctx context.Context, converter string) (func(), error) {
	s := l.slot(converter)
	select {
	case s <- struct{}{}:
	default:
		select {
		case s <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { <-s }) }, nil
}
