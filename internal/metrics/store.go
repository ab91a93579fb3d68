package metrics

import (
	"sync"
	"time"

	"ncreceiver/internal/model"
)

// Store counts relay results per destination.
type Store struct {
	mu            sync.RWMutex
	byDestination map[model.Destination]*model.DestinationStats
}

func NewStore() *Store {
	return &Store{byDestination: make(map[model.Destination]*model.DestinationStats)}
}

func (s *Store) Record(outcome model.DeliveryOutcome) {
	if outcome.Destination == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byDestination[outcome.Destination]
	if !ok {
		st = &model.DestinationStats{}
		s.byDestination[outcome.Destination] = st
	}
	st.Received++
	switch {
	case outcome.Success:
		st.Delivered++
	case outcome.Stage == model.StageReceive:
		st.ReceiveFailure++
	case outcome.Stage == model.StageNormalize:
		st.NormalizeFailure++
	case outcome.Stage == model.StageRender:
		st.RenderFailure++
	case outcome.Stage == model.StageDeliver:
		st.DeliveryFailure++
	}
	ts := outcome.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	st.LastOutcomeAt = ts
}

func (s *Store) Get(dest model.Destination) (model.DestinationStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byDestination[dest]
	if !ok {
		return model.DestinationStats{}, false
	}
	return *st, true
}

func (s *Store) GetAll() map[model.Destination]model.DestinationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Destination]model.DestinationStats, len(s.byDestination))
	for dest, st := range s.byDestination {
		out[dest] = *st
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDestination = make(map[model.Destination]*model.DestinationStats)
}
