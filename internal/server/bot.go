package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next transport pong from the peer.
	pongWait = 60 * time.Second
	// Send transport pings at this period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Give up queuing a frame after this long.
	sendTimeout = time.Second
)

// Bot is one connected bot client. The identity is assigned on the
// first registration frame and stays stable for the connection's
// lifetime.
type Bot struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	id     string
	closed bool
}

// NewBot wraps an upgraded websocket connection.
func NewBot(conn *websocket.Conn, logger zerolog.Logger) *Bot {
	return &Bot{
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID returns the connection identity, empty until registration.
func (b *Bot) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *Bot) setID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
}

// Done returns a channel closed when the connection goes away.
func (b *Bot) Done() <-chan struct{} {
	return b.done
}

// IsClosed reports whether the connection has been torn down.
func (b *Bot) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// SendMessage encodes a frame and queues it for delivery.
func (b *Bot) SendMessage(msgType protocol.MessageType, data any) error {
	if b.IsClosed() {
		return ErrBotClosed
	}

	payload, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}

	select {
	case b.send <- payload:
		return nil
	case <-b.done:
		return ErrBotClosed
	case <-time.After(sendTimeout):
		return ErrSendTimeout
	}
}

// ReadPump reads frames from the connection and hands each decoded
// frame to the handler until the connection closes. Decode failures
// are logged and skipped; the peer stays connected.
func (b *Bot) ReadPump(handle func(*Bot, protocol.BotFrame)) {
	defer b.close()

	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				b.logger.Error().Err(err).Str("bot_id", b.ID()).Msg("Unexpected websocket close")
			}
			return
		}

		frame, err := protocol.DecodeBotFrame(data)
		if err != nil {
			b.logger.Warn().Err(err).Str("bot_id", b.ID()).Msg("Dropping undecodable frame")
			continue
		}
		handle(b, frame)
	}
}

// WritePump drains the send queue onto the connection and keeps the
// transport alive with websocket pings.
func (b *Bot) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		b.close()
	}()

	for {
		select {
		case payload, ok := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := b.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-b.done:
			return
		}
	}
}

func (b *Bot) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	_ = b.conn.Close()
}
