// Package router serves live pages: the initial HTML render, the
// WebSocket event channel and the HTTP fallback for events.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saludstaffing/applykit/pkg/audit"
	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/health"
	"github.com/saludstaffing/applykit/pkg/js"
	"github.com/saludstaffing/applykit/pkg/limits"
	"github.com/saludstaffing/applykit/pkg/logging"
	"github.com/saludstaffing/applykit/pkg/metrics"
	"github.com/saludstaffing/applykit/pkg/pool"
	"github.com/saludstaffing/applykit/pkg/protocol"
	"github.com/saludstaffing/applykit/pkg/security"
	"github.com/saludstaffing/applykit/pkg/transport"
)

// Common router errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilRenderer     = errors.New("component returned nil renderer")
	ErrJoinRequired    = errors.New("join required")
	ErrComponentPanic  = errors.New("component panicked")
)

// Routes served by the router itself.
const (
	WebSocketPath = "/live/ws"
	EventPath     = "/live/ds/"
	ClientPath    = "/live/client/"
	HealthPath    = "/healthz"
	MetricsPath   = "/metrics"
)

// submitEvent is the form submit event; its outcome is counted.
const submitEvent = "submit"

// Middleware is a function that wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

type assignsProvider interface {
	Assigns() *core.Assigns
}

type commandSource interface {
	TakeCommands() js.Commands
}

type replier interface {
	Reply() map[string]any
}

// Patch replaces the element with ID by HTML.
type Patch struct {
	ID   string
	HTML string
}

// EventResult is what one handled event sends back to the client.
type EventResult struct {
	Patches  []Patch
	Commands js.Commands
	Reply    map[string]any
}

// Router handles HTTP routing for live pages.
type Router struct {
	mux        *http.ServeMux
	pages      map[string]func() core.Component
	middleware []Middleware
	handler    http.Handler

	sessions        *SessionManager
	sessionConfig   SessionManagerConfig
	codec           protocol.Codec
	codecs          *protocol.CodecRegistry
	csrf            *security.CSRFProtection
	wsConfig        *transport.WebSocketConfig
	transportConfig *transport.Config
	eventTimeout    time.Duration
	sweepInterval   time.Duration
	client          http.Handler
	health          *health.Checker
	eventRate       int
	socketEvents    *limits.TokenBucket
	conns           *limits.ConnectionLimiter
	metrics         *metrics.Metrics
	exposeMetrics   bool
	audit           audit.Logger
	logger          logging.Logger

	mu sync.RWMutex
}

// Option configures a Router.
type Option func(*Router)

// WithCodec sets the default WebSocket frame codec.
func WithCodec(c protocol.Codec) Option {
	return func(r *Router) { r.codec = c }
}

// WithLogger sets the router logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithCSRF sets the token signer.
func WithCSRF(c *security.CSRFProtection) Option {
	return func(r *Router) { r.csrf = c }
}

// WithWebSocketConfig sets the origin policy for WebSocket upgrades.
func WithWebSocketConfig(c *transport.WebSocketConfig) Option {
	return func(r *Router) { r.wsConfig = c }
}

// WithTransportConfig sets connection timeouts and buffers.
func WithTransportConfig(c *transport.Config) Option {
	return func(r *Router) { r.transportConfig = c }
}

// WithSessions configures the session manager.
func WithSessions(c SessionManagerConfig) Option {
	return func(r *Router) { r.sessionConfig = c }
}

// WithEventTimeout bounds how long one event may take.
func WithEventTimeout(d time.Duration) Option {
	return func(r *Router) { r.eventTimeout = d }
}

// WithSweepInterval sets how often Run expires idle sessions.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Router) { r.sweepInterval = d }
}

// WithEventRateLimit caps HTTP event requests per client per second.
func WithEventRateLimit(rps int) Option {
	return func(r *Router) { r.eventRate = rps }
}

// WithConnectionLimit caps concurrent WebSocket connections per client IP.
func WithConnectionLimit(perIP int) Option {
	return func(r *Router) { r.conns = limits.NewConnectionLimiter(perIP) }
}

// WithAudit records refused requests to l.
func WithAudit(l audit.Logger) Option {
	return func(r *Router) { r.audit = l }
}

// WithMetrics records into m and serves it under MetricsPath.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
		r.exposeMetrics = true
	}
}

// WithClient serves the browser client under ClientPath.
func WithClient(h http.Handler) Option {
	return func(r *Router) { r.client = h }
}

// WithVersion reports version on the health endpoint.
func WithVersion(v string) Option {
	return func(r *Router) { r.health.SetVersion(v) }
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		pages:           make(map[string]func() core.Component),
		sessionConfig:   DefaultSessionManagerConfig(),
		codec:           protocol.NewJSONCodec(),
		codecs:          protocol.NewCodecRegistry(),
		csrf:            security.NewCSRFProtection(security.CSRFConfig{}),
		wsConfig:        transport.DefaultWebSocketConfig(),
		transportConfig: transport.DefaultConfig(),
		eventTimeout:    5 * time.Second,
		sweepInterval:   time.Minute,
		health:          health.NewChecker(""),
		logger:          logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}

	onEvict := r.sessionConfig.OnEvict
	r.sessionConfig.OnEvict = func(s *LiveSession) {
		r.evict(s)
		if onEvict != nil {
			onEvict(s)
		}
	}
	r.sessions = NewSessionManager(r.sessionConfig)

	if r.metrics == nil {
		r.metrics = metrics.New("applykit")
	}
	if r.audit == nil {
		r.audit = audit.NopLogger{}
	}
	r.metrics.SessionsActive.Set(func() float64 { return float64(r.sessions.Count()) })

	r.health.Add("sessions", health.SessionCapacity(r.sessions.Count, r.sessionConfig.MaxSessions))
	r.health.AddCritical("pages", health.PagesRegistered(r.pageCount))

	r.mux.HandleFunc("GET "+WebSocketPath, r.handleWebSocket)
	var events http.Handler = http.HandlerFunc(r.handleEventRequest)
	if r.eventRate > 0 {
		events = rateLimit(r.eventRate, func(req *http.Request) {
			r.metrics.RateLimited.Inc()
			audit.RateLimitExceeded(r.audit, req, "")
		})(events)
		r.socketEvents = limits.NewTokenBucket(float64(r.eventRate), r.eventRate)
	}
	r.mux.Handle("POST "+EventPath+"{event}", events)
	r.mux.Handle("GET "+HealthPath, r.health.Handler())
	if r.client != nil {
		r.mux.Handle("GET "+ClientPath, http.StripPrefix(ClientPath, r.client))
	}
	if r.exposeMetrics {
		r.mux.Handle("GET "+MetricsPath, r.metrics.Handler())
	}
	return r
}

// Use adds middleware around every route.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
	r.handler = nil
}

// Page registers a live page at path. factory builds one component per
// visitor.
func (r *Router) Page(path string, factory func() core.Component) {
	r.mu.Lock()
	r.pages[path] = factory
	r.mu.Unlock()

	pattern := "GET " + path
	if path == "/" {
		pattern = "GET /{$}"
	}
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		r.renderPage(w, req, path, factory)
	})
}

// Handle registers a plain HTTP handler.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

// Pages returns the registered page paths in order.
func (r *Router) Pages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.pages))
	for p := range r.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (r *Router) pageCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// Sessions returns the session manager.
func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

// Health returns the health checker.
func (r *Router) Health() *health.Checker {
	return r.health
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()

	if h == nil {
		r.mu.Lock()
		if r.handler == nil {
			var chain http.Handler = r.mux
			for i := len(r.middleware) - 1; i >= 0; i-- {
				chain = r.middleware[i](chain)
			}
			r.handler = chain
		}
		h = r.handler
		r.mu.Unlock()
	}
	h.ServeHTTP(w, req)
}

// Run expires idle sessions until ctx is done.
func (r *Router) Run(ctx context.Context) {
	r.sessions.Run(ctx, r.sweepInterval)
}

// Shutdown closes every connection and terminates every session.
func (r *Router) Shutdown(ctx context.Context) {
	if r.socketEvents != nil {
		r.socketEvents.Close()
	}
	for _, sess := range r.sessions.Drain() {
		if sock := sess.Socket(); sock != nil {
			sock.Close()
		}
		if err := sess.Component.Terminate(ctx, core.TerminateShutdown); err != nil {
			r.logger.Debug("terminate failed", logging.String("session", sess.ID), logging.Err(err))
		}
	}
}

// renderPage mounts a fresh component and serves its HTML.
func (r *Router) renderPage(w http.ResponseWriter, req *http.Request, path string, factory func() core.Component) {
	ctx := req.Context()
	log := logging.L(ctx)

	comp := factory()
	params := extractParams(req)
	sess := r.sessions.Create(path, comp, params, core.Session{})
	r.metrics.SessionsTotal.Inc()

	token, err := r.csrf.GenerateToken(sess.ID)
	if err != nil {
		r.sessions.Remove(sess.ID)
		log.Error("csrf token failed", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.CSRFToken = token
	sess.Session[core.SessionIDKey] = sess.ID
	sess.Session[core.CSRFTokenKey] = token

	if err := comp.Mount(ctx, params, sess.Session); err != nil {
		r.sessions.Remove(sess.ID)
		log.Error("mount failed", logging.String("path", path), logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// The first render already carries the mounted state and the focus
	// marker, so nothing from mount is sent again.
	if ap, ok := comp.(assignsProvider); ok {
		ap.Assigns().TakeChanged(core.HTMLAssignPrefix)
	}
	if cs, ok := comp.(commandSource); ok {
		cs.TakeCommands()
	}

	renderer := comp.Render(ctx)
	if renderer == nil {
		r.sessions.Remove(sess.ID)
		log.Error("render failed", logging.Err(ErrNilRenderer))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if err := renderer.Render(ctx, buf); err != nil {
		r.sessions.Remove(sess.ID)
		log.Error("render failed", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("write page", logging.Err(err))
	}
	log.Debug("page rendered", logging.String("session", sess.ID))
}

// Dispatch runs one event against a session and collects what the
// client must apply. Events of one session never run concurrently.
func (r *Router) Dispatch(ctx context.Context, sess *LiveSession, event string, payload map[string]any) (EventResult, error) {
	sess.events.Lock()
	defer sess.events.Unlock()

	sess.UpdateActivity()
	if payload == nil {
		payload = make(map[string]any)
	}

	ctx, cancel := context.WithTimeout(ctx, r.eventTimeout)
	defer cancel()
	ctx = logging.ContextWithLogger(ctx, r.logger.With(logging.String("session", sess.ID)))

	timer := r.metrics.EventLatency.Timer()
	defer timer.Stop()

	if err := r.handle(ctx, sess, event, payload); err != nil {
		r.metrics.EventErrors.Inc()
		return EventResult{}, err
	}
	r.metrics.Events.Inc(event)

	res := collect(sess.Component)
	for _, p := range res.Patches {
		r.metrics.PatchBytes.Observe(float64(len(p.HTML)))
	}
	if proceed, _ := res.Reply["proceed"].(bool); proceed {
		r.metrics.Submissions.Inc("proceed")
	} else if event == submitEvent {
		r.metrics.Submissions.Inc("blocked")
	}
	return res, nil
}

// handle runs the component's handler, turning a panic into an error so
// one broken session cannot take the connection loop down.
func (r *Router) handle(ctx context.Context, sess *LiveSession, event string, payload map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.PanicsTotal.Inc()
			logging.L(ctx).Error("event panic",
				logging.String("event", event),
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrComponentPanic, rec)
		}
	}()
	return sess.Component.HandleEvent(ctx, event, payload)
}

// collect drains the changed fragments and pending commands of comp.
func collect(comp core.Component) EventResult {
	var res EventResult
	if ap, ok := comp.(assignsProvider); ok {
		a := ap.Assigns()
		for _, key := range a.TakeChanged(core.HTMLAssignPrefix) {
			res.Patches = append(res.Patches, Patch{
				ID:   strings.TrimPrefix(key, core.HTMLAssignPrefix),
				HTML: a.GetString(key),
			})
		}
	}
	if cs, ok := comp.(commandSource); ok {
		res.Commands = cs.TakeCommands()
	}
	if rp, ok := comp.(replier); ok {
		res.Reply = rp.Reply()
	}
	return res
}

// snapshotPatches returns every fragment of comp, changed or not.
func snapshotPatches(comp core.Component) []Patch {
	ap, ok := comp.(assignsProvider)
	if !ok {
		return nil
	}
	a := ap.Assigns()
	data := a.Data()
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, core.HTMLAssignPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	patches := make([]Patch, 0, len(keys))
	for _, k := range keys {
		patches = append(patches, Patch{ID: strings.TrimPrefix(k, core.HTMLAssignPrefix), HTML: a.GetString(k)})
	}
	return patches
}

// evict closes the connection of a session dropped by the manager.
func (r *Router) evict(sess *LiveSession) {
	if sock := sess.Socket(); sock != nil {
		sock.Close()
	}
	if err := sess.Component.Terminate(context.Background(), core.TerminateTimeout); err != nil {
		r.logger.Debug("terminate failed", logging.String("session", sess.ID), logging.Err(err))
	}
	r.forget(sess)
	r.metrics.SessionsEvicted.Inc()
	r.logger.Debug("session evicted", logging.String("session", sess.ID))
}

// endSession terminates a session's component and forgets it.
func (r *Router) endSession(sess *LiveSession, reason core.TerminateReason) {
	r.sessions.Remove(sess.ID)
	r.forget(sess)
	if err := sess.Component.Terminate(context.Background(), reason); err != nil {
		r.logger.Debug("terminate failed", logging.String("session", sess.ID), logging.Err(err))
	}
}

// forget drops per-session limiter state.
func (r *Router) forget(sess *LiveSession) {
	if r.socketEvents != nil {
		r.socketEvents.Forget(sess.ID)
	}
}

// handleWebSocket upgrades the request and serves the connection.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	// Clients may pick the frame codec; the browser client asks for JSON.
	codec := r.codec
	if name := req.URL.Query().Get("codec"); name != "" {
		c, err := r.codecs.Lookup(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	release := func() {}
	if r.conns != nil {
		ip := limits.ClientIP(req)
		if !r.conns.Acquire(ip) {
			r.metrics.ConnectionsDenied.Inc()
			audit.ConnectionDenied(r.audit, req, r.conns.Limit())
			http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
			return
		}
		release = func() { r.conns.Release(ip) }
	}

	ws := transport.NewWebSocketTransport(r.transportConfig, r.wsConfig, codec)
	ws.SetLogger(r.logger)

	if err := ws.Upgrade(w, req); err != nil {
		release()
		logging.L(req.Context()).Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	// The connection outlives the request.
	go func() {
		defer release()
		r.serveSocket(context.Background(), ws, req)
	}()
}

// serveSocket waits for a valid join, then handles events until the
// connection ends.
func (r *Router) serveSocket(ctx context.Context, ws *transport.WebSocketTransport, req *http.Request) {
	defer ws.Close()

	sess, socket := r.awaitJoin(ws, req)
	if sess == nil {
		return
	}
	defer sess.Detach(socket)

	r.metrics.ConnectionsTotal.Inc()
	r.metrics.ConnectionsActive.Inc()
	defer r.metrics.ConnectionsActive.Dec()

	log := r.logger.With(logging.String("session", sess.ID))
	log.Debug("socket joined")

	for {
		select {
		case msg := <-ws.Receive():
			socket.UpdateActivity()
			sess.UpdateActivity()

			switch msg.Event {
			case protocol.EventHeartbeat:
				socket.Reply(msg.Ref, map[string]any{"status": "ok"})

			case protocol.EventLeave:
				log.Debug("socket left")
				r.endSession(sess, core.TerminateNormal)
				return

			case protocol.EventJoin:
				socket.Reply(msg.Ref, map[string]any{"status": "ok", "response": map[string]any{"session": sess.ID}})

			default:
				if r.socketEvents != nil && !r.socketEvents.Allow(sess.ID) {
					r.metrics.RateLimited.Inc()
					audit.RateLimitExceeded(r.audit, req, sess.ID)
					ws.Send(protocol.ErrorReply(msg.Ref, msg.Topic, limits.ErrRateLimitExceeded.Error()))
					continue
				}
				res, err := r.Dispatch(ctx, sess, msg.Event, msg.Payload)
				if err != nil {
					ws.Send(protocol.ErrorReply(msg.Ref, msg.Topic, err.Error()))
					continue
				}
				r.push(socket, res)
				socket.Reply(msg.Ref, map[string]any{"status": "ok", "response": res.Reply})
			}

		case <-ws.CloseChan():
			log.Debug("socket closed")
			return
		}
	}
}

// awaitJoin reads messages until one joins a known session with a valid
// token. Rejected joins get an error reply so the client can reload.
func (r *Router) awaitJoin(ws *transport.WebSocketTransport, req *http.Request) (*LiveSession, *core.Socket) {
	timer := time.NewTimer(r.transportConfig.ReadTimeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-ws.Receive():
			if msg.Event == protocol.EventHeartbeat {
				ws.Send(protocol.ReplyMessage(msg.Ref, msg.Topic, nil))
				continue
			}
			if msg.Event != protocol.EventJoin {
				ws.Send(protocol.ErrorReply(msg.Ref, msg.Topic, ErrJoinRequired.Error()))
				continue
			}

			id := msg.GetPayloadString("session")
			sess, err := r.join(id, msg.GetPayloadString("csrf"))
			if err != nil {
				r.logger.Debug("join rejected", logging.Err(err))
				if errors.Is(err, ErrSessionNotFound) {
					audit.SessionRejected(r.audit, req, id, err.Error())
				} else {
					audit.CSRFViolation(r.audit, req, id)
				}
				ws.Send(protocol.ErrorReply(msg.Ref, msg.Topic, err.Error()))
				continue
			}

			socket := core.NewSocket(sess.ID, wsSocket{ws})
			if prev := sess.Attach(socket); prev != nil && prev != socket {
				prev.Close()
			}
			socket.Reply(msg.Ref, map[string]any{"status": "ok", "response": map[string]any{"session": sess.ID}})

			// Resync in case events arrived over HTTP while disconnected.
			sess.events.Lock()
			for _, p := range snapshotPatches(sess.Component) {
				socket.Push(protocol.EventPatch, map[string]any{"id": p.ID, "html": p.HTML})
			}
			sess.events.Unlock()
			return sess, socket

		case <-ws.CloseChan():
			return nil, nil

		case <-timer.C:
			r.logger.Debug("join timed out")
			return nil, nil
		}
	}
}

// join resolves a session and checks its token.
func (r *Router) join(id, token string) (*LiveSession, error) {
	sess, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := r.csrf.ValidateToken(token, sess.ID); err != nil {
		return nil, fmt.Errorf("join %s: %w", id, err)
	}
	return sess, nil
}

// push sends patches before commands so focus lands on patched elements.
func (r *Router) push(socket *core.Socket, res EventResult) {
	for _, p := range res.Patches {
		if err := socket.Push(protocol.EventPatch, map[string]any{"id": p.ID, "html": p.HTML}); err != nil {
			r.logger.Debug("push patch", logging.String("id", p.ID), logging.Err(err))
			return
		}
	}
	if len(res.Commands) > 0 {
		socket.Push(protocol.EventJS, map[string]any{
			"ops":  res.Commands.Ops(),
			"code": res.Commands.ToJS(),
		})
	}
}

// extractParams extracts query parameters.
func extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
