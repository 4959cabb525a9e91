package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec errors.
var (
	ErrInvalidMessage = errors.New("invalid message format")
	ErrUnknownCodec   = errors.New("unknown codec type")
)

// Codec frames messages for the WebSocket.
type Codec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)

	// Name is the value the client passes as ?codec=.
	Name() string

	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
}

// codec adapts a marshal/unmarshal pair to Codec.
type codec struct {
	name      string
	binary    bool
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// NewJSONCodec returns the codec the browser client speaks.
func NewJSONCodec() Codec {
	return &codec{name: "json", marshal: json.Marshal, unmarshal: json.Unmarshal}
}

// NewMsgPackCodec returns a binary MessagePack codec.
func NewMsgPackCodec() Codec {
	return &codec{name: "msgpack", binary: true, marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}

func (c *codec) Name() string { return c.name }
func (c *codec) Binary() bool { return c.binary }

func (c *codec) Encode(msg *Message) ([]byte, error) {
	return c.marshal(msg)
}

// Decode rejects frames that do not name an event.
func (c *codec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := c.unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Event == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}

// CodecRegistry resolves codecs by name. It is built once at startup and
// read concurrently afterwards.
type CodecRegistry struct {
	codecs map[string]Codec
	def    Codec
}

// NewCodecRegistry holds the JSON and MessagePack codecs with JSON as the
// default.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[string]Codec)}
	for _, c := range []Codec{NewJSONCodec(), NewMsgPackCodec()} {
		r.codecs[c.Name()] = c
	}
	r.def = r.codecs["json"]
	return r
}

// Lookup returns the named codec, or the default for an empty name.
func (r *CodecRegistry) Lookup(name string) (Codec, error) {
	if name == "" {
		return r.def, nil
	}
	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// Default returns the codec used when a client names none.
func (r *CodecRegistry) Default() Codec {
	return r.def
}

// SetDefault makes the named codec the default.
func (r *CodecRegistry) SetDefault(name string) error {
	c, err := r.Lookup(name)
	if err != nil {
		return err
	}
	r.def = c
	return nil
}
