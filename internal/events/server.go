package events

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/whep-play/internal/util"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server streams hub events to WebSocket clients at /events. Every client
// gets its own subscription and sees events from the moment it connected.
type Server struct {
	hub      *Hub
	log      util.Logger
	listener net.Listener
}

// NewServer creates a Server for hub.
func NewServer(hub *Hub, log util.Logger) *Server {
	if log == nil {
		log = util.NewLogger("events")
	}
	return &Server{hub: hub, log: log}
}

// Start listens on addr (":0" picks a random port) and serves in the
// background. It returns the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start event feed: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)

	go func() {
		_ = http.Serve(listener, mux)
	}()

	return listener.Addr(), nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so the client cannot miss
	// events emitted right after it connects.
	events, cancel := s.hub.Subscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		return
	}
	defer conn.Close()
	defer cancel()

	s.log.Debugf("event feed client connected: %s", r.RemoteAddr)

	// Drain client frames so close and ping frames are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debugf("event feed write failed: %v", err)
				return
			}

		case <-gone:
			s.log.Debugf("event feed client left: %s", r.RemoteAddr)
			return
		}
	}
}

// Close shuts down the listener, preventing new connections.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
}
