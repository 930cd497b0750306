package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"reelbooth/internal/logging"
	"reelbooth/internal/recorder"
)

const (
	eventWriteWait  = 5 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = eventPongWait * 9 / 10
	eventBuffer     = 64
)

// Any origin may subscribe; the auth middleware still applies.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents streams recorder events over a websocket. The first message
// is a state event carrying the current snapshot.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.daemon.recorder.Subscribe(eventBuffer)
	defer cancel()

	// Replace the read deadline the HTTP server applied before the upgrade.
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	st := s.daemon.recorder.Status()
	snapshot := recorder.Event{
		Kind:      recorder.EventState,
		State:     st.State,
		SessionID: st.SessionID,
		Mode:      st.Mode,
		Remaining: st.CountdownRemaining,
		ElapsedMS: st.ElapsedMS,
		Progress:  st.Progress,
		Time:      st.UpdatedAt,
	}
	if err := s.writeEvent(conn, snapshot); err != nil {
		return
	}

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()
	s.logger.Debug("event stream opened", logging.String("remote", r.RemoteAddr))
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			s.logger.Debug("event stream closed", logging.String("remote", r.RemoteAddr))
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "recorder stopped"),
					time.Now().Add(eventWriteWait))
				return
			}
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *apiServer) writeEvent(conn *websocket.Conn, ev recorder.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(ev)
}
