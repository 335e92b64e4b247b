package auth

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Flash kinds. They double as CSS classes in the templates.
const (
	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

var flashKinds = []string{FlashError, FlashSuccess, FlashInfo}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// AddFlash queues a message for the next page view.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) error {
	s := m.session(r)
	s.AddFlash(message, kind)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("saving flash: %w", err)
	}
	return nil
}

// Flashes pops all queued messages. The session is only rewritten when
// there was something to pop.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	s := m.session(r)
	var out []Flash
	for _, kind := range flashKinds {
		for _, v := range s.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := s.Save(r, w); err != nil {
			m.log.Warn("clearing flashes", zap.Error(err))
		}
	}
	return out
}
