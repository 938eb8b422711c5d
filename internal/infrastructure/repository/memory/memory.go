// Package memory keeps the result stream in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"adc-acquisition/internal/domain"
)

// Repository stores results per channel. With a positive limit only the most
// recent results of each channel are kept.
type Repository struct {
	mu      sync.RWMutex
	limit   int
	results map[int][]domain.SampleResult
}

// New creates an empty repository that keeps at most limit results per
// channel; zero or less keeps everything.
func New(limit int) *Repository {
	return &Repository{limit: limit, results: make(map[int][]domain.SampleResult)}
}

// Add appends a result to the stream of its channel.
func (r *Repository) Add(_ context.Context, result domain.SampleResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := append(r.results[result.Channel], result)
	if r.limit > 0 && len(stream) > r.limit {
		stream = append([]domain.SampleResult(nil), stream[len(stream)-r.limit:]...)
	}
	r.results[result.Channel] = stream
	return nil
}

// Latest returns the result with the newest timestamp for the channel.
func (r *Repository) Latest(_ context.Context, channel int) (domain.SampleResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream := r.results[channel]
	if len(stream) == 0 {
		return domain.SampleResult{}, domain.ErrNotFound
	}

	latest := stream[0]
	for _, result := range stream[1:] {
		if !result.Timestamp.Before(latest.Timestamp) {
			latest = result
		}
	}
	return latest, nil
}

// History returns the results of the channel within [from, to] ordered by timestamp.
func (r *Repository) History(_ context.Context, channel int, from, to time.Time) ([]domain.SampleResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if from.After(to) {
		return nil, nil
	}

	var filtered []domain.SampleResult
	for _, result := range r.results[channel] {
		if result.Timestamp.Before(from) || result.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, result)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	return filtered, nil
}

// Len returns the number of results held for the channel.
func (r *Repository) Len(channel int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results[channel])
}

var _ domain.SampleRepository = (*Repository)(nil)
