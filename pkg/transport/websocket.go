package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/saludstaffing/applykit/pkg/logging"
	"github.com/saludstaffing/applykit/pkg/protocol"
)

// WebSocketTransport frames protocol messages over one WebSocket. Reads,
// writes and pings each run in their own goroutine; Receive and Send are
// the only points of contact with the session loop.
type WebSocketTransport struct {
	config   *Config
	wsConfig *WebSocketConfig
	codec    protocol.Codec
	logger   logging.Logger

	url     string
	headers http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	sendCh    chan *protocol.Message
	recvCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates a transport framing messages with codec.
// Nil arguments take their defaults; a nil codec means JSON.
func NewWebSocketTransport(config *Config, wsConfig *WebSocketConfig, codec protocol.Codec) *WebSocketTransport {
	if config == nil {
		config = DefaultConfig()
	}
	if wsConfig == nil {
		wsConfig = DefaultWebSocketConfig()
	}
	if codec == nil {
		codec = protocol.NewJSONCodec()
	}
	return &WebSocketTransport{
		config:   config,
		wsConfig: wsConfig,
		codec:    codec,
		logger:   logging.NopLogger{},
		headers:  make(http.Header),
		sendCh:   make(chan *protocol.Message, config.SendBuffer),
		recvCh:   make(chan *protocol.Message, config.ReceiveBuffer),
		closeCh:  make(chan struct{}),
	}
}

// SetLogger sets the logger for frame errors.
func (t *WebSocketTransport) SetLogger(l logging.Logger) {
	t.logger = l
}

// SetURL sets the address Connect dials.
func (t *WebSocketTransport) SetURL(url string) {
	t.url = url
}

// SetHeader sets a header sent by Connect.
func (t *WebSocketTransport) SetHeader(key, value string) {
	t.headers.Set(key, value)
}

// Connect dials the configured URL. Tests use it as the client side.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if t.url == "" {
		return errors.New("websocket URL not set")
	}
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{HTTPHeader: t.headers})
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	t.start(conn)
	return nil
}

// Upgrade accepts a browser connection after checking its origin.
func (t *WebSocketTransport) Upgrade(w http.ResponseWriter, r *http.Request) error {
	if !t.wsConfig.originAllowed(r.Header.Get("Origin"), r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The origin was checked above.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}
	t.start(conn)
	return nil
}

func (t *WebSocketTransport) start(conn *websocket.Conn) {
	conn.SetReadLimit(t.config.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.connected.Store(true)

	go t.readLoop()
	go t.writeLoop()
	go t.pingLoop()
}

// IsConnected reports whether the socket is open.
func (t *WebSocketTransport) IsConnected() bool {
	return t.connected.Load()
}

// Receive delivers decoded messages in arrival order.
func (t *WebSocketTransport) Receive() <-chan *protocol.Message {
	return t.recvCh
}

// CloseChan is closed once the transport shuts down.
func (t *WebSocketTransport) CloseChan() <-chan struct{} {
	return t.closeCh
}

// Send queues msg for the write loop, waiting at most WriteTimeout.
func (t *WebSocketTransport) Send(msg *protocol.Message) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()

	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close shuts the transport down. It is safe to call more than once.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		close(t.closeCh)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "closing")
	t.conn = nil
	return err
}

func (t *WebSocketTransport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// readLoop decodes frames in order. Delivery blocks so events of one
// session are never dropped or reordered.
func (t *WebSocketTransport) readLoop() {
	defer t.Close()

	for {
		conn := t.current()
		if conn == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.config.ReadTimeout)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := t.codec.Decode(data)
		if err != nil {
			t.logger.Debug("websocket frame dropped", logging.Err(err))
			continue
		}

		select {
		case t.recvCh <- msg:
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocketTransport) writeLoop() {
	typ := websocket.MessageText
	if t.codec.Binary() {
		typ = websocket.MessageBinary
	}

	for {
		select {
		case msg := <-t.sendCh:
			conn := t.current()
			if conn == nil {
				return
			}
			data, err := t.codec.Encode(msg)
			if err != nil {
				t.logger.Warn("websocket encode failed", logging.String("event", msg.Event), logging.Err(err))
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
			err = conn.Write(ctx, typ, data)
			cancel()
			if err != nil {
				t.Close()
				return
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocketTransport) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn := t.current()
			if conn == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
			conn.Ping(ctx)
			cancel()
		case <-t.closeCh:
			return
		}
	}
}
