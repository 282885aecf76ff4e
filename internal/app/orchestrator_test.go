package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/domain"
	"github.com/confab-live/confab/internal/protocol"
)

type fakeConn struct {
	frames []core.Frame
	closed bool
	full   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func connect(o *Orchestrator, id core.ConnID) *fakeConn {
	fc := &fakeConn{}
	o.Connect(id, fc, "")
	return fc
}

func createMeeting(t *testing.T, o *Orchestrator, id, title string) {
	t.Helper()
	if _, err := o.Meetings.Create(domain.MeetingID(id), title); err != nil {
		t.Fatalf("create meeting %q: %v", id, err)
	}
}

func join(o *Orchestrator, conn core.ConnID, meeting, name string) []Outbound {
	return o.handleJoin(conn, protocol.ClientMessage{
		Type:      protocol.EventJoinMeeting,
		MeetingID: meeting,
		User:      &domain.Profile{Name: name},
	})
}

func eventsTo(outs []Outbound, to core.ConnID) []protocol.EventType {
	var events []protocol.EventType
	for _, out := range outs {
		if out.To == to {
			events = append(events, out.Event)
		}
	}
	return events
}

func TestJoinUnknownMeeting(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")

	outs := join(o, "c1", "nope", "Alice")

	if len(outs) != 1 || outs[0].To != "c1" || outs[0].Event != protocol.EventMeetingNotFound {
		t.Fatalf("expected a single meeting-not-found to the caller, got %+v", outs)
	}
	if o.Meetings.Len() != 0 {
		t.Fatalf("join against unknown meeting must not mutate the store")
	}
	if _, ok := o.Registry.MeetingOf("c1"); ok {
		t.Fatalf("caller must remain without a meeting association")
	}
}

func TestJoinNotifiesExistingMembersOnly(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "abc123", "Standup")

	if outs := join(o, "c1", "abc123", "Alice"); len(outs) != 0 {
		t.Fatalf("first joiner should produce no outbounds (empty room), got %+v", outs)
	}

	outs := join(o, "c2", "abc123", "Bob")
	if len(outs) != 1 {
		t.Fatalf("expected exactly one user-joined, got %+v", outs)
	}
	out := outs[0]
	if out.To != "c1" || out.Event != protocol.EventUserJoined {
		t.Fatalf("user-joined must go to the existing member, got %+v", out)
	}
	m, ok := out.Msg.(protocol.Membership)
	if !ok {
		t.Fatalf("unexpected message type %T", out.Msg)
	}
	if m.ID != "c2" || m.User == nil || m.User.Name != "Bob" {
		t.Fatalf("user-joined must carry the new member's id and profile, got %+v", m)
	}
	// The joiner gets no ack and no server-initiated offer: discovery is
	// peer-driven.
	if events := eventsTo(outs, "c2"); len(events) != 0 {
		t.Fatalf("joiner must receive nothing, got %v", events)
	}
}

func TestMembershipReplay(t *testing.T) {
	o := NewOrchestrator()
	createMeeting(t, o, "m", "")
	for _, id := range []core.ConnID{"c1", "c2", "c3"} {
		connect(o, id)
		join(o, id, "m", string(id))
	}

	o.handleLeave("c2", protocol.ClientMessage{Type: protocol.EventLeaveMeeting, MeetingID: "m"})
	o.Disconnect("c3")
	// Replays of already-gone members are no-ops.
	o.handleLeave("c2", protocol.ClientMessage{Type: protocol.EventLeaveMeeting, MeetingID: "m"})
	o.Disconnect("c3")

	members := o.Meetings.Members("m")
	if len(members) != 1 || members[0] != "c1" {
		t.Fatalf("expected membership {c1}, got %v", members)
	}
}

func TestDuplicateCreateLeavesMeetingUntouched(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "m", "Original")
	join(o, "c1", "m", "Alice")

	outs := o.handleCreateMeeting("c2", protocol.ClientMessage{
		Type: protocol.EventCreateMeeting, MeetingID: "m", Title: "Hijack",
	})

	if len(outs) != 1 || outs[0].To != "c2" || outs[0].Event != protocol.EventError {
		t.Fatalf("expected a single error outbound to the caller, got %+v", outs)
	}
	if msg := outs[0].Msg.(protocol.ErrorMessage); msg.Code != protocol.CodeDuplicateMeeting {
		t.Fatalf("expected duplicate-meeting code, got %q", msg.Code)
	}
	meeting, _ := o.Meetings.Get("m")
	if meeting.Title != "Original" {
		t.Fatalf("duplicate create must not alter the title, got %q", meeting.Title)
	}
	if got := o.Meetings.Members("m"); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("duplicate create must not alter membership, got %v", got)
	}
}

func TestDisconnectNotifiesRoomExactlyOnce(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "abc123", "Standup")
	join(o, "c1", "abc123", "Alice")
	join(o, "c2", "abc123", "Bob")

	outs := o.Disconnect("c1")

	if len(outs) != 1 || outs[0].To != "c2" || outs[0].Event != protocol.EventUserDisconnected {
		t.Fatalf("expected exactly one user-disconnected to c2, got %+v", outs)
	}
	m := outs[0].Msg.(protocol.Membership)
	if m.ID != "c1" || m.User == nil || m.User.Name != "Alice" {
		t.Fatalf("user-disconnected must reference c1's id and profile, got %+v", m)
	}
	if got := o.Meetings.Members("abc123"); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("membership must now be {c2}, got %v", got)
	}
	if _, ok := o.Registry.Lookup("c1"); ok {
		t.Fatalf("disconnect must remove the registry entry")
	}
}

func TestLeaveThenDisconnectNotifiesOnce(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "m", "")
	join(o, "c1", "m", "Alice")
	join(o, "c2", "m", "Bob")

	left := o.handleLeave("c1", protocol.ClientMessage{Type: protocol.EventLeaveMeeting, MeetingID: "m"})
	if len(left) != 1 || left[0].Event != protocol.EventUserLeft {
		t.Fatalf("expected one user-left, got %+v", left)
	}

	// The client disconnects right after leaving; the room must not hear
	// about it a second time.
	if outs := o.Disconnect("c1"); len(outs) != 0 {
		t.Fatalf("disconnect after leave must not re-notify, got %+v", outs)
	}
}

func TestJoinAnotherMeetingLeavesFirst(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "a", "")
	createMeeting(t, o, "b", "")
	join(o, "c1", "a", "Alice")
	join(o, "c2", "a", "Bob")

	outs := join(o, "c2", "b", "Bob")

	if events := eventsTo(outs, "c1"); len(events) != 1 || events[0] != protocol.EventUserLeft {
		t.Fatalf("old room must observe user-left, got %v", events)
	}
	if got := o.Meetings.Members("a"); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("expected a={c1}, got %v", got)
	}
	if got := o.Meetings.Members("b"); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("expected b={c2}, got %v", got)
	}
}

func TestRelayToUnknownTargetIsDropped(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")

	outs := o.handleRelay("c1", protocol.ClientMessage{
		Type:  protocol.EventOffer,
		To:    "gone",
		Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	if len(outs) != 0 {
		t.Fatalf("relay to an unknown target must produce no messages, got %+v", outs)
	}
}

func TestRelayAttachesSenderIdentity(t *testing.T) {
	o := NewOrchestrator()
	connect(o, "c1")
	connect(o, "c2")
	createMeeting(t, o, "m", "")
	join(o, "c1", "m", "Alice")
	join(o, "c2", "m", "Bob")

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	outs := o.handleRelay("c1", protocol.ClientMessage{Type: protocol.EventOffer, To: "c2", Offer: payload})
	if len(outs) != 1 || outs[0].To != "c2" {
		t.Fatalf("expected a single forward to c2, got %+v", outs)
	}
	sigMsg := outs[0].Msg.(protocol.RelaySignal)
	if sigMsg.From != "c1" || sigMsg.User == nil || sigMsg.User.Name != "Alice" {
		t.Fatalf("offer must carry server-populated from and the sender profile, got %+v", sigMsg)
	}
	if string(sigMsg.Offer) != string(payload) {
		t.Fatalf("payload must pass through untouched")
	}

	// Candidates carry only the sender id.
	outs = o.handleRelay("c2", protocol.ClientMessage{
		Type:      protocol.EventICECandidate,
		To:        "c1",
		Candidate: json.RawMessage(`{"candidate":"candidate:1"}`),
	})
	cand := outs[0].Msg.(protocol.RelaySignal)
	if cand.From != "c2" || cand.User != nil {
		t.Fatalf("candidate relay must not attach a profile, got %+v", cand)
	}
}

func TestChatExcludesSenderAndOutsiders(t *testing.T) {
	o := NewOrchestrator()
	createMeeting(t, o, "m", "")
	createMeeting(t, o, "other", "")
	for _, id := range []core.ConnID{"c1", "c2", "c3"} {
		connect(o, id)
		join(o, id, "m", string(id))
	}
	connect(o, "outsider")
	join(o, "outsider", "other", "Eve")

	outs := o.handleChat("c1", protocol.ClientMessage{
		Type:      protocol.EventSendMessage,
		MeetingID: "m",
		Message:   json.RawMessage(`{"text":"hi"}`),
	})

	got := map[core.ConnID]int{}
	for _, out := range outs {
		if out.Event != protocol.EventNewMessage {
			t.Fatalf("unexpected event %v", out.Event)
		}
		got[out.To]++
	}
	if got["c1"] != 0 || got["outsider"] != 0 || got["c2"] != 1 || got["c3"] != 1 || len(outs) != 2 {
		t.Fatalf("chat must reach exactly the other members, got %v", got)
	}
}

func TestChatFromNonMemberIsDropped(t *testing.T) {
	o := NewOrchestrator()
	createMeeting(t, o, "m", "")
	connect(o, "c1")

	outs := o.handleChat("c1", protocol.ClientMessage{
		Type:      protocol.EventSendMessage,
		MeetingID: "m",
		Message:   json.RawMessage(`{"text":"hi"}`),
	})
	if len(outs) != 0 {
		t.Fatalf("chat from a non-member must not broadcast, got %+v", outs)
	}
}

func TestHandleFrameDeliversAndReportsErrors(t *testing.T) {
	o := NewOrchestrator()
	c1 := connect(o, "c1")
	c2 := connect(o, "c2")
	createMeeting(t, o, "m", "")

	o.HandleFrame("c1", []byte(`{"type":"join-meeting","meetingId":"m","user":{"name":"Alice"}}`))
	o.HandleFrame("c2", []byte(`{"type":"join-meeting","meetingId":"m","user":{"name":"Bob"}}`))

	if len(c1.frames) != 1 {
		t.Fatalf("c1 should have received one frame, got %d", len(c1.frames))
	}
	var joined protocol.Membership
	if err := json.Unmarshal(c1.frames[0], &joined); err != nil {
		t.Fatalf("unmarshal delivered frame: %v", err)
	}
	if joined.Type != protocol.EventUserJoined || joined.ID != "c2" {
		t.Fatalf("unexpected delivered message %+v", joined)
	}

	// Garbage gets an error event back, never a teardown.
	o.HandleFrame("c2", []byte(`{"type":"warp-drive"}`))
	if len(c2.frames) != 1 {
		t.Fatalf("c2 should have received the error event, got %d frames", len(c2.frames))
	}
	var errMsg protocol.ErrorMessage
	if err := json.Unmarshal(c2.frames[0], &errMsg); err != nil {
		t.Fatalf("unmarshal error frame: %v", err)
	}
	if errMsg.Type != protocol.EventError || errMsg.Code != protocol.CodeUnknownEvent {
		t.Fatalf("unexpected error message %+v", errMsg)
	}
	if c2.closed {
		t.Fatalf("a bad message must not close the connection")
	}
}

func TestDeliverClosesBackpressuredConn(t *testing.T) {
	o := NewOrchestrator()
	c1 := connect(o, "c1")
	slow := &fakeConn{full: true}
	o.Connect("c2", slow, "")
	createMeeting(t, o, "m", "")
	join(o, "c1", "m", "Alice")
	join(o, "c2", "m", "Bob")

	o.HandleFrame("c1", []byte(`{"type":"send-message","meetingId":"m","message":{"text":"hi"}}`))

	if !slow.closed {
		t.Fatalf("a connection that cannot accept sends must be closed")
	}
	if c1.closed {
		t.Fatalf("the sender must be unaffected")
	}
}

func TestManyMembersFanOut(t *testing.T) {
	o := NewOrchestrator()
	createMeeting(t, o, "m", "")
	const n = 25
	for i := 0; i < n; i++ {
		id := core.ConnID(fmt.Sprintf("c%d", i))
		connect(o, id)
		join(o, id, "m", string(id))
	}

	outs := o.handleChat("c0", protocol.ClientMessage{
		Type:      protocol.EventSendMessage,
		MeetingID: "m",
		Message:   json.RawMessage(`{"text":"hi"}`),
	})
	if len(outs) != n-1 {
		t.Fatalf("expected %d recipients, got %d", n-1, len(outs))
	}
}
