package weather

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// UpdateStatus remembers when realtime data was last written. It starts out
// unknown and is only ever moved forward.
type UpdateStatus struct {
	clock clockwork.Clock

	mu   sync.RWMutex
	last time.Time
}

// NewUpdateStatus creates a status tracker. A nil clock uses the wall clock.
func NewUpdateStatus(clock clockwork.Clock) *UpdateStatus {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UpdateStatus{clock: clock}
}

// MarkUpdated records the current time as the last successful update.
func (s *UpdateStatus) MarkUpdated() time.Time {
	now := s.clock.Now().In(StationZone)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = now
	return now
}

// LastUpdate returns the last successful update time; ok is false while it is
// still unknown.
func (s *UpdateStatus) LastUpdate() (t time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, !s.last.IsZero()
}
