package server

import (
	"net/http"
	"time"

	"NewportChat/internal/session"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// event is pushed to live pages. HTML carries the sanitized transcript so
// the browser never renders reply markup itself.
type event struct {
	Type     string            `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	HTML     string            `json:"html,omitempty"`
}

func snapshotEvent(snap session.Snapshot) (event, error) {
	fragment, err := renderMessages(snap.Messages)
	if err != nil {
		return event{}, err
	}
	return event{Type: "snapshot", Snapshot: &snap, HTML: fragment}, nil
}

// handleWebSocket streams a snapshot after every state change and a focus
// event whenever the session is asked to focus its input.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "session_id", sess.ID(), "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	focus := make(chan struct{}, 1)
	removeHook := sess.OnFocus(func() {
		select {
		case focus <- struct{}{}:
		default:
		}
	})
	defer removeHook()

	// the client only sends close frames
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev event) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("websocket write failed", "session_id", sess.ID(), "error", err)
			return false
		}
		return true
	}

	s.logger.Info("websocket connected", "session_id", sess.ID())
	defer s.logger.Info("websocket disconnected", "session_id", sess.ID())

	ev, err := snapshotEvent(sess.Snapshot())
	if err != nil {
		s.logger.Error("failed to render snapshot", "session_id", sess.ID(), "error", err)
		return
	}
	if !send(ev) {
		return
	}

	for {
		select {
		case <-done:
			return

		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			ev, err := snapshotEvent(snap)
			if err != nil {
				s.logger.Error("failed to render snapshot", "session_id", sess.ID(), "error", err)
				continue
			}
			if !send(ev) {
				return
			}

		case <-focus:
			if !send(event{Type: "focus"}) {
				return
			}
		}
	}
}
