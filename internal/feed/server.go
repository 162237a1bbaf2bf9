package feed

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lightcurvedb/internal/observability"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Server serves the websocket observation feed. Each connection gets its
// own broker subscription; messages are JSON-encoded Items.
type Server struct {
	broker   *Broker
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a feed Server on top of broker.
func NewServer(broker *Broker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[feed] ", log.LstdFlags)
	}
	return &Server{
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and streams feed items until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	itemCh := s.broker.Subscribe()
	defer s.broker.Unsubscribe(itemCh)
	observability.SetFeedSubscribers(s.broker.SubCount())
	defer func() {
		observability.SetFeedSubscribers(s.broker.SubCount())
	}()

	// Reader drains control frames and signals disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case item, ok := <-itemCh:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(item); err != nil {
				s.logger.Printf("Write failed: %v", err)
				return
			}
			observability.RecordFeedItemsSent(1)
		}
	}
}
