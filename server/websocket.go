package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/YuminosukeSato/linfit/pkg/log"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = pongWait * 9 / 10
)

type wsCommand struct {
	Action string `json:"action"`
}

// streamSession upgrades to a websocket that first sends the current
// state, then one "epoch" message per completed epoch and finally the
// "result". Clients may send {"action": "pause"|"resume"|"stop"}.
func (s *Server) streamSession(c *gin.Context) {
	e, err := s.registry.session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		return
	}
	defer conn.Close()

	logger := s.logger.With(log.SessionIDKey, e.Session.ID())
	events, release := e.hub.subscribe()
	defer release()

	// events already covered by the snapshot are skipped below
	sent := 0
	snapshot := message{Type: "state", State: e.Session.State()}
	if latest, ok := e.Session.Latest(); ok {
		snapshot.Epoch = &latest
		sent = latest.Epoch
	}
	if !write(conn, snapshot) {
		return
	}

	replies := make(chan message, 4)
	gone := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go readCommands(conn, e, replies, gone, quit)

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				drain(conn, replies)
				final := message{Type: "error", State: e.Session.State(), Error: "client too slow"}
				if res, done := e.hub.final(); done {
					final = message{Type: "result", State: res.State, Result: res}
				}
				write(conn, final)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, final.Type),
					time.Now().Add(writeWait))
				return
			}
			if msg.Epoch.Epoch <= sent {
				continue
			}
			sent = msg.Epoch.Epoch
			if !write(conn, msg) {
				return
			}
		case reply := <-replies:
			if !write(conn, reply) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			logger.Debug("websocket client left")
			return
		}
	}
}

// drain flushes replies that were queued before the run finished.
func drain(conn *websocket.Conn, replies <-chan message) {
	for {
		select {
		case reply := <-replies:
			if !write(conn, reply) {
				return
			}
		default:
			return
		}
	}
}

func write(conn *websocket.Conn, msg message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg) == nil
}

// readCommands is the connection's only reader. It closes gone when the
// client disconnects.
func readCommands(conn *websocket.Conn, e *sessionEntry, replies chan<- message, gone, quit chan struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var err error
		switch cmd.Action {
		case "pause":
			err = e.pause()
		case "resume":
			err = e.resume()
		case "stop":
			err = e.stop()
		default:
			err = errUnknownAction(cmd.Action)
		}
		reply := message{Type: "ack", State: e.Session.State()}
		if err != nil {
			reply = message{Type: "error", State: e.Session.State(), Error: err.Error()}
		}
		select {
		case replies <- reply:
		case <-quit:
			return
		}
	}
}
