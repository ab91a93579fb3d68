package outcomes

import (
	"sync"
	"time"

	"ncreceiver/internal/model"
)

// Store keeps the most recent delivery outcomes in memory, oldest first.
type Store struct {
	mu    sync.RWMutex
	buf   []model.DeliveryOutcome
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{limit: limit}
}

func (s *Store) Add(outcome model.DeliveryOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, outcome)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = outcome
}

func (s *Store) List(limit int) []model.DeliveryOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.DeliveryOutcome, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.DeliveryOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DeliveryOutcome, 0)
	for _, o := range s.buf {
		if !o.Timestamp.Before(ts) {
			out = append(out, o)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
