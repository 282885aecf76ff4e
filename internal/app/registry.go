package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/domain"
)

// ConnRecord is the registry's view of one live connection.
type ConnRecord struct {
	Conn core.SignalConnection
	// AccountID is the authenticated account behind the connection,
	// empty for anonymous connections.
	AccountID string
	// Profile is attached at join time; nil until then.
	Profile *domain.Profile
	// Meeting is the connection's current meeting, "" when not joined.
	Meeting domain.MeetingID
}

// Registry maps connection ids to live transport handles and identity.
// It is a passive data holder: removing an entry never performs room
// cleanup, that is the lifecycle supervisor's job.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*ConnRecord
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*ConnRecord)}
}

func (r *Registry) Register(id core.ConnID, conn core.SignalConnection, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &ConnRecord{Conn: conn, AccountID: accountID}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
}

// AttachUser stores the profile supplied at join. The profile is untrusted
// client input; validation happened at the protocol boundary.
func (r *Registry) AttachUser(id core.ConnID, profile *domain.Profile) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[id]
	if !ok {
		return false
	}
	rec.Profile = profile
	return true
}

// Lookup returns a copy of the record so callers never hold registry-owned
// mutable state.
func (r *Registry) Lookup(id core.ConnID) (ConnRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conns[id]
	if !ok {
		return ConnRecord{}, false
	}
	return *rec, true
}

func (r *Registry) Remove(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("removed connection")
}

// MeetingOf returns the connection's current meeting, if any.
func (r *Registry) MeetingOf(id core.ConnID) (domain.MeetingID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conns[id]
	if !ok || rec.Meeting == "" {
		return "", false
	}
	return rec.Meeting, true
}

func (r *Registry) SetMeeting(id core.ConnID, meeting domain.MeetingID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[id]
	if !ok {
		return false
	}
	rec.Meeting = meeting
	return true
}

// ClearMeeting drops the connection's meeting association. Idempotent.
func (r *Registry) ClearMeeting(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.conns[id]; ok {
		rec.Meeting = ""
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
