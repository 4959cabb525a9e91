// Package core defines the live page contract the router drives.
package core

import (
	"context"
	"io"
)

// Component is server-side page state driven by browser events. The router
// serialises calls per session, so implementations need no locking of
// their own.
type Component interface {
	Name() string
	Mount(ctx context.Context, params Params, session Session) error
	Render(ctx context.Context) Renderer
	// HandleEvent applies one browser event. Payload values are untrusted.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error
	Terminate(ctx context.Context, reason TerminateReason) error
}

type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params are the query values of the request that rendered the page.
type Params map[string]string

// Session is what the HTTP request hands over to the live session.
type Session map[string]any

const (
	SessionIDKey = "session_id"
	CSRFTokenKey = "csrf_token"
)

func (s Session) GetString(key string) string {
	v, _ := s[key].(string)
	return v
}

type TerminateReason int

const (
	TerminateNormal TerminateReason = iota
	TerminateShutdown
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateTimeout:
		return "timeout"
	}
	return "unknown"
}

// SocketSetter is implemented by components that want their socket.
type SocketSetter interface {
	SetSocket(s *Socket)
}

// BaseComponent supplies no-op lifecycle methods, a socket slot and a
// lazily created Assigns.
type BaseComponent struct {
	socket  *Socket
	assigns *Assigns
}

func (bc *BaseComponent) SetSocket(s *Socket) { bc.socket = s }

func (bc *BaseComponent) Socket() *Socket { return bc.socket }

func (bc *BaseComponent) Assigns() *Assigns {
	if bc.assigns == nil {
		bc.assigns = NewAssigns()
	}
	return bc.assigns
}

func (bc *BaseComponent) Name() string { return "" }

func (bc *BaseComponent) Mount(context.Context, Params, Session) error { return nil }

func (bc *BaseComponent) HandleEvent(context.Context, string, map[string]any) error { return nil }

func (bc *BaseComponent) Terminate(context.Context, TerminateReason) error { return nil }
