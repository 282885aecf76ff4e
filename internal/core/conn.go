// Package core defines the transport-facing contracts shared by the
// in-memory state holders and the adapters that own the sockets.
package core

// Frame is a single serialized wire message.
type Frame []byte

// ConnID identifies one live transport session. Assigned at connect time,
// never reused within a process.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues a frame without blocking. It fails when the peer's
	// send buffer is full (backpressure) or the connection is closed.
	TrySend(Frame) error
	Close()
}
