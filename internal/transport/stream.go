package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/livesync/internal/domain/livestate"
)

// handleStream pushes the session state as server-sent events: the current
// state first, then every newer version. Slow readers skip versions.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := chi.URLParam(r, "ws")
	sessionID := chi.URLParam(r, "sid")

	if s.svc.Hub == nil {
		WriteError(w, http.StatusNotImplemented, "STREAM_FAILED", "real-time push disabled")
		return
	}

	// Subscribe before the initial read so no write falls in between.
	sub, err := s.svc.Hub.Subscribe(workspaceID, sessionID)
	if err != nil {
		s.fail(w, r, err, "STREAM")
		return
	}
	defer s.svc.Hub.Unsubscribe(sub)

	current, err := s.svc.Live.ReadState(ctx, workspaceID, sessionID)
	if err != nil {
		s.fail(w, r, err, "STREAM")
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sent := current.Version
	if err := writeStateEvent(w, current); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Debug("stream flush unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub.C():
			if !ok {
				return
			}
			if state.Version <= sent {
				continue
			}
			sent = state.Version
			if err := writeStateEvent(w, &state); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeStateEvent(w http.ResponseWriter, state *livestate.SessionState) error {
	data, err := json.Marshal(stateFields(state))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", state.Version, data)
	return err
}
