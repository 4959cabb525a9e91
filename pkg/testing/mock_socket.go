package testing

import (
	"sync"

	"github.com/google/uuid"

	"github.com/saludstaffing/applykit/pkg/core"
)

// MockSocket is an in-memory core.Transport that records every push.
type MockSocket struct {
	ID string

	mu     sync.Mutex
	sent   []core.Message
	closed bool
	err    error
}

// NewMockSocket creates an open socket with a random id.
func NewMockSocket() *MockSocket {
	return &MockSocket{ID: "test-" + uuid.NewString()[:8]}
}

func (ms *MockSocket) Send(msg core.Message) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	switch {
	case ms.err != nil:
		return ms.err
	case ms.closed:
		return core.ErrSocketClosed
	}
	ms.sent = append(ms.sent, msg)
	return nil
}

func (ms *MockSocket) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

func (ms *MockSocket) IsConnected() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return !ms.closed
}

// SentMessages returns a copy of every recorded message.
func (ms *MockSocket) SentMessages() []core.Message {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]core.Message(nil), ms.sent...)
}

// Events returns the event names pushed so far, in order.
func (ms *MockSocket) Events() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]string, len(ms.sent))
	for i, m := range ms.sent {
		out[i] = m.Event
	}
	return out
}

// SentCount returns the number of recorded messages.
func (ms *MockSocket) SentCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.sent)
}

// SetError makes every Send fail with err until cleared with nil.
func (ms *MockSocket) SetError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.err = err
}

// Reset forgets recorded messages and reopens the socket.
func (ms *MockSocket) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sent, ms.closed, ms.err = nil, false, nil
}
