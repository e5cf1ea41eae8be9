// Package broadcast fans published records out to log subscribers
// over websocket. Subscribers are passive: anything they send besides
// transport control frames is discarded.
package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Queued frames per subscriber. A subscriber that falls this far
	// behind starts losing frames rather than stalling publication.
	sendBuffer = 64
)

// Hub distributes published frames to every connected subscriber.
// Publishing never blocks on a slow subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger.With().Str("component", "broadcast").Logger(),
	}
}

// Handle adopts an upgraded websocket connection as a subscriber and
// blocks until the connection goes away.
func (h *Hub) Handle(conn *websocket.Conn) {
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	h.logger.Info().Int("subscribers", count).Msg("Subscriber connected")

	go sub.writePump()
	sub.readPump()

	h.mu.Lock()
	delete(h.subs, sub)
	count = len(h.subs)
	h.mu.Unlock()
	h.logger.Info().Int("subscribers", count).Msg("Subscriber disconnected")
}

// Publish encodes a frame once and queues it to every subscriber.
// Subscribers with a full queue drop the frame.
func (h *Hub) Publish(msgType protocol.MessageType, data any) {
	payload, err := protocol.Encode(msgType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to encode broadcast frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.send <- payload:
		case <-sub.done:
		default:
			h.logger.Warn().Str("type", string(msgType)).Msg("Subscriber queue full, dropping frame")
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// readPump drains the connection so control frames get processed and
// disconnects are noticed.
func (s *subscriber) readPump() {
	defer s.close()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
