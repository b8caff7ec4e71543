package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/flightwall/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Display clients connect from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket pushes the flight list to the client on connect and after
// every new publish. Each connection reads through its own handoff reader.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	log := s.logger.With(logger.String("remote", r.RemoteAddr))
	log.Debug("websocket connected")

	reader := s.opts.Flights.NewReader(s.opts.ReadWait)

	// Drain client frames so pongs and close frames are processed.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := time.NewTicker(s.opts.PushInterval)
	defer push.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var sent uint64
	first := true
	for {
		snap := reader.Snapshot()
		if first || snap.Generation != sent {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(newFlightsResponse(snap)); err != nil {
				log.Debug("websocket write failed", logger.Error(err))
				return
			}
			sent = snap.Generation
			first = false
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			log.Debug("websocket closed by client")
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-push.C:
		}
	}
}
