package router

import (
	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/protocol"
	"github.com/saludstaffing/applykit/pkg/transport"
)

// wsSocket writes core messages as protocol frames. Close and IsConnected
// come from the embedded transport.
type wsSocket struct {
	*transport.WebSocketTransport
}

var _ core.Transport = wsSocket{}

func (s wsSocket) Send(msg core.Message) error {
	return s.WebSocketTransport.Send(&protocol.Message{
		Ref:     msg.Ref,
		Topic:   msg.Topic,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
}
