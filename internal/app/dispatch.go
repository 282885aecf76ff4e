package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/core"
	"github.com/confab-live/confab/internal/protocol"
)

// handlerFunc is one entry of the dispatch table: it takes the shared
// state, the originating connection and the parsed payload, and produces
// zero or more outbound messages.
type handlerFunc func(o *Orchestrator, conn core.ConnID, msg protocol.ClientMessage) []Outbound

var handlers = map[protocol.EventType]handlerFunc{
	protocol.EventCreateMeeting:      (*Orchestrator).handleCreateMeeting,
	protocol.EventCheckMeetingExists: (*Orchestrator).handleCheckMeeting,
	protocol.EventJoinMeeting:        (*Orchestrator).handleJoin,
	protocol.EventLeaveMeeting:       (*Orchestrator).handleLeave,
	protocol.EventOffer:              (*Orchestrator).handleRelay,
	protocol.EventAnswer:             (*Orchestrator).handleRelay,
	protocol.EventICECandidate:       (*Orchestrator).handleRelay,
	protocol.EventSendMessage:        (*Orchestrator).handleChat,
}

// HandleFrame processes one inbound wire message as an atomic unit: the
// handler runs and its outbounds are enqueued under a single lock, so every
// event observes a consistent snapshot and a given recipient sees
// notifications in emission order. A malformed or failed message yields a
// named error event back to the sender, never a connection teardown.
func (o *Orchestrator) HandleFrame(conn core.ConnID, data []byte) {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		code := protocol.CodeBadPayload
		if errors.Is(err, protocol.ErrUnknownEvent) {
			code = protocol.CodeUnknownEvent
		}
		log.Warn().Err(err).Str("module", "app.dispatch").Str("conn", string(conn)).Msg("rejected inbound message")
		o.mu.Lock()
		o.deliver([]Outbound{{To: conn, Event: protocol.EventError, Msg: protocol.NewError(code, err.Error())}})
		o.mu.Unlock()
		return
	}

	h := handlers[msg.Type]

	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliver(h(o, conn, msg))
}

// HandleDisconnect runs the lifecycle cleanup for an abruptly closed
// transport and notifies the remaining room.
func (o *Orchestrator) HandleDisconnect(conn core.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliver(o.Disconnect(conn))
}
