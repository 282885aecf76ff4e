// Package protocol models the signaling wire surface: event names, the
// client envelope, and the server-emitted message shapes.
//
// SDP and ICE payloads are carried as opaque blobs; this package only
// checks that the envelope's routing fields are structurally valid.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/domain"
)

// EventType discriminates wire messages in both directions.
type EventType string

// Client -> server events.
const (
	EventCreateMeeting      EventType = "create-meeting"
	EventCheckMeetingExists EventType = "check-meeting-exists"
	EventJoinMeeting        EventType = "join-meeting"
	EventLeaveMeeting       EventType = "leave-meeting"
	EventOffer              EventType = "offer"
	EventAnswer             EventType = "answer"
	EventICECandidate       EventType = "ice-candidate"
	EventSendMessage        EventType = "send-message"
)

// Server -> client events. Offer, answer and ice-candidate are relayed
// under their inbound names.
const (
	EventMeetingCreated   EventType = "meeting-created"
	EventMeetingExists    EventType = "meeting-exists"
	EventMeetingNotFound  EventType = "meeting-not-found"
	EventUserJoined       EventType = "user-joined"
	EventUserLeft         EventType = "user-left"
	EventUserDisconnected EventType = "user-disconnected"
	EventNewMessage       EventType = "new-message"
	EventError            EventType = "error"
)

// Error codes carried by EventError messages.
const (
	CodeDuplicateMeeting = "duplicate-meeting"
	CodeBadPayload       = "bad-payload"
	CodeUnknownEvent     = "unknown-event"
)

var (
	ErrUnknownEvent     = errors.New("protocol: unknown event type")
	ErrMissingMeetingID = errors.New("protocol: missing meetingId")
	ErrMissingTarget    = errors.New("protocol: missing to")
	ErrMissingPayload   = errors.New("protocol: missing payload")
	ErrMissingProfile   = errors.New("protocol: missing user profile")
	ErrPayloadShape     = errors.New("protocol: malformed payload")
)

// ClientMessage is the single inbound envelope. Which fields are required
// depends on Type; Validate enforces that.
type ClientMessage struct {
	Type      EventType       `json:"type"`
	MeetingID string          `json:"meetingId,omitempty"`
	Title     string          `json:"title,omitempty"`
	User      *domain.Profile `json:"user,omitempty"`
	To        string          `json:"to,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
}

func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrPayloadShape, err)
	}
	if err := msg.Validate(); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

func (m ClientMessage) Validate() error {
	switch m.Type {
	case EventCreateMeeting, EventCheckMeetingExists, EventLeaveMeeting:
		if m.MeetingID == "" {
			return ErrMissingMeetingID
		}
	case EventJoinMeeting:
		if m.MeetingID == "" {
			return ErrMissingMeetingID
		}
		if m.User == nil {
			return ErrMissingProfile
		}
	case EventOffer:
		if m.To == "" {
			return ErrMissingTarget
		}
		return checkSessionDescription(m.Offer, webrtc.SDPTypeOffer)
	case EventAnswer:
		if m.To == "" {
			return ErrMissingTarget
		}
		return checkSessionDescription(m.Answer, webrtc.SDPTypeAnswer)
	case EventICECandidate:
		if m.To == "" {
			return ErrMissingTarget
		}
		return checkCandidate(m.Candidate)
	case EventSendMessage:
		if m.MeetingID == "" {
			return ErrMissingMeetingID
		}
		if len(m.Message) == 0 {
			return ErrMissingPayload
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, m.Type)
	}
	return nil
}

// SignalPayload returns the opaque blob for a relayed signaling kind.
func (m ClientMessage) SignalPayload() json.RawMessage {
	switch m.Type {
	case EventOffer:
		return m.Offer
	case EventAnswer:
		return m.Answer
	case EventICECandidate:
		return m.Candidate
	}
	return nil
}

// checkSessionDescription verifies the blob has the shape of a browser
// RTCSessionDescription whose type matches the event kind. Contents are
// not otherwise inspected.
func checkSessionDescription(raw json.RawMessage, want webrtc.SDPType) error {
	if len(raw) == 0 {
		return ErrMissingPayload
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadShape, err)
	}
	if desc.Type != want {
		return fmt.Errorf("%w: sdp type %q", ErrPayloadShape, desc.Type)
	}
	if desc.SDP == "" {
		return fmt.Errorf("%w: empty sdp", ErrPayloadShape)
	}
	return nil
}

func checkCandidate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return ErrMissingPayload
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadShape, err)
	}
	return nil
}

// Server-emitted messages. Each carries its own type tag so adapters can
// marshal them directly.

type MeetingCreated struct {
	Type    EventType      `json:"type"`
	Meeting domain.Meeting `json:"meeting"`
}

func NewMeetingCreated(m domain.Meeting) MeetingCreated {
	return MeetingCreated{Type: EventMeetingCreated, Meeting: m}
}

type MeetingExists struct {
	Type      EventType `json:"type"`
	MeetingID string    `json:"meetingId"`
	Exists    bool      `json:"exists"`
}

func NewMeetingExists(id domain.MeetingID, exists bool) MeetingExists {
	return MeetingExists{Type: EventMeetingExists, MeetingID: string(id), Exists: exists}
}

type MeetingNotFound struct {
	Type      EventType `json:"type"`
	MeetingID string    `json:"meetingId"`
}

func NewMeetingNotFound(id domain.MeetingID) MeetingNotFound {
	return MeetingNotFound{Type: EventMeetingNotFound, MeetingID: string(id)}
}

// Membership carries join/leave/disconnect notifications. ID is the
// affected peer's connection id, which doubles as its signaling address.
type Membership struct {
	Type EventType       `json:"type"`
	ID   string          `json:"id"`
	User *domain.Profile `json:"user,omitempty"`
}

func NewMembership(event EventType, id core.ConnID, user *domain.Profile) Membership {
	return Membership{Type: event, ID: string(id), User: user}
}

// RelaySignal is a forwarded offer/answer/ice-candidate. Exactly one of the
// payload fields is set, matching Type. From is always populated by the
// server; User accompanies offers and answers only.
type RelaySignal struct {
	Type      EventType       `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	From      string          `json:"from"`
	User      *domain.Profile `json:"user,omitempty"`
}

func NewRelaySignal(kind EventType, payload json.RawMessage, from core.ConnID, user *domain.Profile) RelaySignal {
	s := RelaySignal{Type: kind, From: string(from), User: user}
	switch kind {
	case EventOffer:
		s.Offer = payload
	case EventAnswer:
		s.Answer = payload
	case EventICECandidate:
		s.Candidate = payload
	}
	return s
}

// ChatMessage is the new-message broadcast. Message is the sender's blob,
// relayed untouched and never persisted.
type ChatMessage struct {
	Type    EventType       `json:"type"`
	UserID  string          `json:"userId"`
	Message json.RawMessage `json:"message"`
	User    *domain.Profile `json:"user,omitempty"`
}

type ErrorMessage struct {
	Type    EventType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func NewError(code, message string) ErrorMessage {
	return ErrorMessage{Type: EventError, Code: code, Message: message}
}
