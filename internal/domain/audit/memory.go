package audit

import (
	"context"
	"slices"
	"sync"

	"bread/internal/core/id"
)

// MemorySink keeps entries in process, encoded the same way a database sink
// stores them.
type MemorySink struct {
	codec *Codec

	mu      sync.RWMutex
	entries []Entry
}

// NewMemorySink creates an empty sink.
func NewMemorySink(codec *Codec) *MemorySink {
	return &MemorySink{codec: codec}
}

// Write stores e.
func (s *MemorySink) Write(_ context.Context, e Entry) error {
	e.Changes, e.Compression = s.codec.Encode(e.Changes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// History returns the latest entries of one record, newest first.
func (s *MemorySink) History(_ context.Context, model string, recordID id.ID, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range slices.Backward(s.entries) {
		if e.Model != model || e.RecordID != recordID {
			continue
		}
		raw, err := s.codec.Decode(e.Changes, e.Compression)
		if err != nil {
			return nil, err
		}
		e.Changes = raw
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
