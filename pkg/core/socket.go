package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	ErrSocketClosed = errors.New("socket is closed")
	ErrSendFailed   = errors.New("failed to send message")
)

// Transport carries messages to one browser.
type Transport interface {
	Send(msg Message) error
	Close() error
	IsConnected() bool
}

// Message is a server to client frame. Replies carry the Ref of the
// client message they answer.
type Message struct {
	Ref     string         `json:"ref,omitempty" msgpack:"ref,omitempty"`
	Topic   string         `json:"topic" msgpack:"topic"`
	Event   string         `json:"event" msgpack:"event"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Socket binds a live session to its current transport.
type Socket struct {
	id        string
	transport Transport
	closed    atomic.Bool
	active    atomic.Int64 // unix nanos
}

func NewSocket(id string, transport Transport) *Socket {
	s := &Socket{id: id, transport: transport}
	s.UpdateActivity()
	return s
}

func (s *Socket) ID() string { return s.id }

// Topic is the channel every frame of this socket is addressed to.
func (s *Socket) Topic() string { return "lv:" + s.id }

func (s *Socket) IsConnected() bool {
	return !s.closed.Load() && s.transport != nil && s.transport.IsConnected()
}

func (s *Socket) LastActivity() time.Time {
	return time.Unix(0, s.active.Load())
}

func (s *Socket) UpdateActivity() {
	s.active.Store(time.Now().UnixNano())
}

func (s *Socket) Send(msg Message) error {
	if !s.IsConnected() {
		return ErrSocketClosed
	}
	s.UpdateActivity()

	if err := s.transport.Send(msg); err != nil {
		if s.closed.Load() {
			return ErrSocketClosed
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Push sends a server-initiated event.
func (s *Socket) Push(event string, payload map[string]any) error {
	return s.Send(Message{Topic: s.Topic(), Event: event, Payload: payload})
}

// Reply answers the client message identified by ref.
func (s *Socket) Reply(ref string, payload map[string]any) error {
	return s.Send(Message{Ref: ref, Topic: s.Topic(), Event: "reply", Payload: payload})
}

// Close marks the socket closed and closes the transport once.
func (s *Socket) Close() error {
	if s.closed.Swap(true) || s.transport == nil {
		return nil
	}
	return s.transport.Close()
}
