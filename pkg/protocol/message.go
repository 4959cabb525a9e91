// Package protocol defines the wire messages exchanged with the browser
// client and the codecs that frame them.
package protocol

// Client events with a protocol meaning. Every other event is a component
// event.
const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventHeartbeat = "heartbeat"
)

// Server events.
const (
	EventPatch = "patch"
	EventJS    = "js"
	EventReply = "reply"
)

// Message is one frame in either direction.
type Message struct {
	// Ref correlates a client message with its reply.
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Topic is the live session channel, "lv:<session id>".
	Topic string `json:"topic" msgpack:"topic"`

	Event   string         `json:"event" msgpack:"event"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// NewMessage creates a message with an empty payload.
func NewMessage(topic, event string) *Message {
	return &Message{
		Topic:   topic,
		Event:   event,
		Payload: make(map[string]any),
	}
}

// WithRef sets the reply reference.
func (m *Message) WithRef(ref string) *Message {
	m.Ref = ref
	return m
}

// WithPayload sets the message payload.
func (m *Message) WithPayload(payload map[string]any) *Message {
	m.Payload = payload
	return m
}

// GetPayloadString retrieves a string value from the payload.
func (m *Message) GetPayloadString(key string) string {
	if v, ok := m.Payload[key].(string); ok {
		return v
	}
	return ""
}

// ReplyMessage answers the client message carrying ref.
func ReplyMessage(ref, topic string, response map[string]any) *Message {
	return NewMessage(topic, EventReply).WithRef(ref).WithPayload(map[string]any{
		"status":   "ok",
		"response": response,
	})
}

// ErrorReply answers a client message that failed.
func ErrorReply(ref, topic, reason string) *Message {
	return NewMessage(topic, EventReply).WithRef(ref).WithPayload(map[string]any{
		"status":   "error",
		"response": map[string]any{"reason": reason},
	})
}
