package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/domain"
	"github.com/confab-live/confab/internal/protocol"
)

// Outbound is one message produced by an event handler: deliver Msg to the
// connection To. Handlers return outbounds instead of performing sends so
// routing logic stays separate from transport I/O.
type Outbound struct {
	To    core.ConnID
	Event protocol.EventType
	Msg   any
}

// Orchestrator owns the registry and the meeting store and implements the
// membership, relay and lifecycle transitions. It is constructed once at
// startup and passed into every handler; no ambient globals.
type Orchestrator struct {
	Registry *Registry
	Meetings *MeetingStore

	// mu serializes event handling: every inbound event mutates state and
	// enqueues its outbounds as one atomic unit (see HandleFrame).
	mu sync.Mutex
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Registry: NewRegistry(),
		Meetings: NewMeetingStore(),
	}
}

// Connect records a freshly upgraded transport in the registry.
func (o *Orchestrator) Connect(conn core.ConnID, sc core.SignalConnection, accountID string) {
	o.Registry.Register(conn, sc, accountID)
}

func (o *Orchestrator) handleCreateMeeting(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	meeting, err := o.Meetings.Create(domain.MeetingID(msg.MeetingID), msg.Title)
	if err != nil {
		// Duplicate ids are expected when clients race on readable ids;
		// the caller regenerates and retries.
		return []Outbound{{
			To:    conn,
			Event: protocol.EventError,
			Msg:   protocol.NewError(protocol.CodeDuplicateMeeting, "meeting id already exists"),
		}}
	}
	return []Outbound{{
		To:    conn,
		Event: protocol.EventMeetingCreated,
		Msg:   protocol.NewMeetingCreated(meeting),
	}}
}

func (o *Orchestrator) handleCheckMeeting(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	id := domain.MeetingID(msg.MeetingID)
	return []Outbound{{
		To:    conn,
		Event: protocol.EventMeetingExists,
		Msg:   protocol.NewMeetingExists(id, o.Meetings.Exists(id)),
	}}
}

// handleJoin admits the connection into the meeting and notifies existing
// members. The joiner gets no explicit ack; peers discover it via
// user-joined and initiate offers toward it.
func (o *Orchestrator) handleJoin(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	id := domain.MeetingID(msg.MeetingID)
	if !o.Meetings.Exists(id) {
		return []Outbound{{
			To:    conn,
			Event: protocol.EventMeetingNotFound,
			Msg:   protocol.NewMeetingNotFound(id),
		}}
	}

	var outs []Outbound
	// A connection belongs to at most one meeting: joining a new one
	// leaves the old one first, with the usual departure broadcast.
	if prev, ok := o.Registry.MeetingOf(conn); ok && prev != id {
		outs = append(outs, o.removeFromMeeting(conn, prev, protocol.EventUserLeft)...)
	}

	o.Registry.AttachUser(conn, msg.User)
	if err := o.Meetings.AddMember(id, conn); err != nil {
		return []Outbound{{
			To:    conn,
			Event: protocol.EventMeetingNotFound,
			Msg:   protocol.NewMeetingNotFound(id),
		}}
	}
	o.Registry.SetMeeting(conn, id)

	joined := protocol.NewMembership(protocol.EventUserJoined, conn, msg.User)
	outs = append(outs, o.broadcast(id, conn, protocol.EventUserJoined, joined)...)
	log.Info().Str("module", "app.orchestrator").Str("conn", string(conn)).Str("meeting", string(id)).Msg("joined meeting")
	return outs
}

func (o *Orchestrator) handleLeave(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	return o.removeFromMeeting(conn, domain.MeetingID(msg.MeetingID), protocol.EventUserLeft)
}

// Disconnect is the single cleanup path for abrupt transport closure. The
// explicit leave path converges on the same membership removal, so a leave
// followed by a disconnect yields exactly one departure broadcast.
func (o *Orchestrator) Disconnect(conn core.ConnID) []Outbound {
	var outs []Outbound
	if meeting, ok := o.Registry.MeetingOf(conn); ok {
		outs = o.removeFromMeeting(conn, meeting, protocol.EventUserDisconnected)
	}
	o.Registry.Remove(conn)
	return outs
}

// removeFromMeeting removes the connection from the meeting's membership
// set and, when it actually was a member, broadcasts the departure under
// the given event name. Idempotent.
func (o *Orchestrator) removeFromMeeting(conn core.ConnID, meeting domain.MeetingID, event protocol.EventType) []Outbound {
	removed := o.Meetings.RemoveMember(meeting, conn)
	if cur, ok := o.Registry.MeetingOf(conn); ok && cur == meeting {
		o.Registry.ClearMeeting(conn)
	}
	if !removed {
		return nil
	}
	var profile *domain.Profile
	if rec, ok := o.Registry.Lookup(conn); ok {
		profile = rec.Profile
	}
	msg := protocol.NewMembership(event, conn, profile)
	log.Info().Str("module", "app.orchestrator").Str("conn", string(conn)).Str("meeting", string(meeting)).Str("event", string(event)).Msg("left meeting")
	return o.broadcast(meeting, conn, event, msg)
}

// handleRelay forwards an offer/answer/ice-candidate to its addressed
// target. An unknown target is silently dropped: the remote may have just
// disconnected, and its departure is reported separately.
func (o *Orchestrator) handleRelay(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	target := core.ConnID(msg.To)
	if _, ok := o.Registry.Lookup(target); !ok {
		log.Debug().Str("module", "app.orchestrator").Str("from", string(conn)).Str("to", msg.To).Str("kind", string(msg.Type)).Msg("relay target gone, dropping")
		return nil
	}
	var profile *domain.Profile
	if msg.Type != protocol.EventICECandidate {
		if rec, ok := o.Registry.Lookup(conn); ok {
			profile = rec.Profile
		}
	}
	return []Outbound{{
		To:    target,
		Event: msg.Type,
		Msg:   protocol.NewRelaySignal(msg.Type, msg.SignalPayload(), conn, profile),
	}}
}

// handleChat broadcasts a chat message to the sender's meeting, excluding
// the sender. Messages are ephemeral; nothing is persisted.
func (o *Orchestrator) handleChat(conn core.ConnID, msg protocol.ClientMessage) []Outbound {
	id := domain.MeetingID(msg.MeetingID)
	rec, ok := o.Registry.Lookup(conn)
	if !ok || rec.Meeting != id {
		// Not a member of the addressed meeting: a broadcast must reach
		// exactly the other members, never outsiders' rooms.
		return nil
	}
	userID := rec.AccountID
	if userID == "" {
		userID = string(conn)
	}
	chat := protocol.ChatMessage{
		Type:    protocol.EventNewMessage,
		UserID:  userID,
		Message: msg.Message,
		User:    rec.Profile,
	}
	return o.broadcast(id, conn, protocol.EventNewMessage, chat)
}

// broadcast fans a message out to every current member of the meeting
// except the excluded connection. Fan-out order across members is
// unspecified.
func (o *Orchestrator) broadcast(meeting domain.MeetingID, exclude core.ConnID, event protocol.EventType, msg any) []Outbound {
	members := o.Meetings.Members(meeting)
	outs := make([]Outbound, 0, len(members))
	for _, m := range members {
		if m == exclude {
			continue
		}
		outs = append(outs, Outbound{To: m, Event: event, Msg: msg})
	}
	return outs
}

// deliver enqueues outbounds onto the recipients' send buffers. A send
// failure means the recipient is dead or hopelessly slow; its transport is
// closed and the normal disconnect path takes over from the read pump.
func (o *Orchestrator) deliver(outs []Outbound) {
	for _, out := range outs {
		rec, ok := o.Registry.Lookup(out.To)
		if !ok {
			continue
		}
		data, err := json.Marshal(out.Msg)
		if err != nil {
			log.Error().Err(err).Str("module", "app.orchestrator").Str("event", string(out.Event)).Msg("marshal outbound")
			continue
		}
		if err := rec.Conn.TrySend(core.Frame(data)); err != nil {
			log.Warn().Err(err).Str("module", "app.orchestrator").Str("conn", string(out.To)).Msg("send failed, closing connection")
			rec.Conn.Close()
		}
	}
}
