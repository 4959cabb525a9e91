package router

import (
	"encoding/json"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/saludstaffing/applykit/pkg/audit"
	"github.com/saludstaffing/applykit/pkg/logging"
	"github.com/saludstaffing/applykit/pkg/security"
)

// eventSignals is the state a client posts with an event when it cannot
// keep a WebSocket open.
type eventSignals struct {
	Session string `json:"session"`
	Form    string `json:"form"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Key     string `json:"key,omitempty"`
	Shift   bool   `json:"shift,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Type    string `json:"type,omitempty"`
	Role    string `json:"role,omitempty"`
}

func (s eventSignals) payload() map[string]any {
	p := map[string]any{
		"form":    s.Form,
		"checked": s.Checked,
		"shift":   s.Shift,
	}
	for k, v := range map[string]string{
		"field": s.Field,
		"value": s.Value,
		"key":   s.Key,
		"tag":   s.Tag,
		"type":  s.Type,
		"role":  s.Role,
	} {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// handleEventRequest runs one event posted over HTTP and answers with a
// Datastar event stream: element patches, then the commands as a script,
// then the outcome as signals.
func (r *Router) handleEventRequest(w http.ResponseWriter, req *http.Request) {
	log := logging.L(req.Context())
	event := req.PathValue("event")

	var signals eventSignals
	if err := datastar.ReadSignals(req, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess, ok := r.sessions.Get(signals.Session)
	if !ok {
		audit.SessionRejected(r.audit, req, signals.Session, ErrSessionNotFound.Error())
		http.Error(w, ErrSessionNotFound.Error(), http.StatusGone)
		return
	}
	if err := r.csrf.ValidateToken(req.Header.Get(security.HeaderName), sess.ID); err != nil {
		log.Warn("event rejected", logging.String("session", sess.ID), logging.Err(err))
		audit.CSRFViolation(r.audit, req, sess.ID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	res, err := r.Dispatch(req.Context(), sess, event, signals.payload())

	sse := datastar.NewSSE(w, req)
	if err != nil {
		b, _ := json.Marshal(map[string]any{"error": err.Error()})
		sse.PatchSignals(b)
		return
	}

	for _, p := range res.Patches {
		if err := sse.PatchElements(p.HTML, datastar.WithSelectorID(p.ID)); err != nil {
			log.Debug("patch stream ended", logging.Err(err))
			return
		}
	}

	out := map[string]any{"error": ""}
	for k, v := range res.Reply {
		out[k] = v
	}
	if len(res.Commands) > 0 {
		out["ops"] = res.Commands.Ops()
		if err := sse.ExecuteScript(res.Commands.ToJS()); err != nil {
			log.Debug("script stream ended", logging.Err(err))
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		log.Error("encode signals", logging.Err(err))
		return
	}
	sse.PatchSignals(b)
}
