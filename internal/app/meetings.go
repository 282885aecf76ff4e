package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/domain"
)

type meetingEntry struct {
	meta    domain.Meeting
	members map[core.ConnID]struct{}
	// emptySince is when the membership set last became (or started)
	// empty. Zero while the meeting has members.
	emptySince time.Time
}

// MeetingStore owns meeting metadata and membership sets. All operations
// are synchronous computation over in-memory maps; the store holds no
// external resources.
type MeetingStore struct {
	mu       sync.RWMutex
	meetings map[domain.MeetingID]*meetingEntry
	now      func() time.Time
}

func NewMeetingStore() *MeetingStore {
	return &MeetingStore{
		meetings: make(map[domain.MeetingID]*meetingEntry),
		now:      time.Now,
	}
}

// Create inserts an empty-membership meeting. A duplicate id fails with
// ErrDuplicateMeeting and leaves the existing meeting untouched.
func (s *MeetingStore) Create(id domain.MeetingID, title string) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; ok {
		return domain.Meeting{}, ErrDuplicateMeeting
	}
	created := s.now()
	s.meetings[id] = &meetingEntry{
		meta:       domain.Meeting{ID: id, Title: title, CreatedAt: created},
		members:    make(map[core.ConnID]struct{}),
		emptySince: created,
	}
	log.Info().Str("module", "app.meetings").Str("meeting", string(id)).Str("title", title).Msg("meeting created")
	return s.meetings[id].meta, nil
}

func (s *MeetingStore) Exists(id domain.MeetingID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.meetings[id]
	return ok
}

func (s *MeetingStore) Get(id domain.MeetingID) (domain.Meeting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, false
	}
	return e.meta, true
}

// AddMember adds a connection to the meeting's membership set.
func (s *MeetingStore) AddMember(id domain.MeetingID, conn core.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.meetings[id]
	if !ok {
		return ErrMeetingNotFound
	}
	e.members[conn] = struct{}{}
	e.emptySince = time.Time{}
	return nil
}

// RemoveMember removes a connection from the membership set. Idempotent:
// it reports whether the connection was actually a member, so that the
// leave and disconnect paths can converge without double-notifying.
func (s *MeetingStore) RemoveMember(id domain.MeetingID, conn core.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.meetings[id]
	if !ok {
		return false
	}
	if _, member := e.members[conn]; !member {
		return false
	}
	delete(e.members, conn)
	if len(e.members) == 0 {
		e.emptySince = s.now()
	}
	return true
}

// Members returns the current membership set as a slice. Order is
// unspecified.
func (s *MeetingStore) Members(id domain.MeetingID) []core.ConnID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.meetings[id]
	if !ok {
		return nil
	}
	out := make([]core.ConnID, 0, len(e.members))
	for c := range e.members {
		out = append(out, c)
	}
	return out
}

func (s *MeetingStore) MemberCount(id domain.MeetingID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.meetings[id]
	if !ok {
		return 0
	}
	return len(e.members)
}

// Sweep reaps meetings that have had zero members for at least ttl.
// Meetings with members are never reaped. Returns the number removed.
func (s *MeetingStore) Sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.meetings {
		if len(e.members) > 0 || e.emptySince.IsZero() {
			continue
		}
		if now.Sub(e.emptySince) < ttl {
			continue
		}
		delete(s.meetings, id)
		removed++
		log.Info().Str("module", "app.meetings").Str("meeting", string(id)).Msg("reaped idle meeting")
	}
	return removed
}

func (s *MeetingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}
