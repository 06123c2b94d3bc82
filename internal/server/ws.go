package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coreman2200/funtimes-gpiozero/internal/hub"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// stream sends the current state of every device, then one hub.Event per
// value change until the client goes away or the hub closes.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := s.Hub.Subscribe()
	defer cancel()

	// Reads only detect the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	now := time.Now()
	for _, st := range s.Hub.States() {
		if err := s.send(conn, hub.Event{Device: st.Name, Value: st.Value, TS: now}); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.send(conn, ev); err != nil {
				s.Logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-gone:
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
