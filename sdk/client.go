// Package sdk implements a bot client for the tournament server. A
// bot supplies its metadata and a move function; the client handles
// connection, registration, liveness and reconnects.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/game"
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// MoveFunc decides the bot's response to a turn. It gets the state the
// server sent and returns the response to play.
type MoveFunc func(state *protocol.GameState) game.Response

const (
	writeWait = 10 * time.Second
	// How often the client re-registers to stay on the roster between
	// games.
	heartbeatPeriod = 15 * time.Second
	// Reconnect backoff bounds.
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Client is a connected bot. Create one with NewClient and drive it
// with Run.
type Client struct {
	serverURL string
	meta      protocol.BotMetadata
	move      MoveFunc
	logger    zerolog.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	sessionUUID string
}

// NewClient creates a client for the given server URL. The url may use
// the http, https, ws or wss scheme.
func NewClient(serverURL string, meta protocol.BotMetadata, move MoveFunc, logger zerolog.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		meta:      meta,
		move:      move,
		logger:    logger.With().Str("component", "sdk").Logger(),
	}
}

// SessionUUID returns the identity the server assigned, empty before
// the first registration ack.
func (c *Client) SessionUUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionUUID
}

// Run connects and plays until the context is cancelled, reconnecting
// with backoff when the connection drops. The session identity
// survives reconnects, so the server sees one bot throughout.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one connection lifetime: dial, register, then answer
// frames until the connection or context ends.
func (c *Client) session(ctx context.Context) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	if err := c.register(); err != nil {
		return err
	}

	go c.heartbeat(sessionCtx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping undecodable frame")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	c.logger.Info().Str("url", u.String()).Msg("Connecting to server")
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return conn, nil
}

// register announces the bot. On reconnect the stored session uuid is
// sent back so the server keeps the same identity.
func (c *Client) register() error {
	c.mu.Lock()
	meta := c.meta
	meta.SessionUUID = c.sessionUUID
	c.mu.Unlock()
	return c.send(protocol.TypeRegisterBot, meta)
}

// heartbeat re-registers periodically so the roster keeps the bot
// through quiet stretches between tournaments.
func (c *Client) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.register(); err != nil {
				c.logger.Debug().Err(err).Msg("Heartbeat registration failed")
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRegisterBot:
		var meta protocol.BotMetadata
		if err := json.Unmarshal(msg.Data, &meta); err != nil {
			c.logger.Warn().Err(err).Msg("Bad registration ack")
			return
		}
		c.mu.Lock()
		first := c.sessionUUID == ""
		c.sessionUUID = meta.SessionUUID
		c.mu.Unlock()
		if first {
			c.logger.Info().Str("session_uuid", meta.SessionUUID).Msg("Registered")
		}

	case protocol.TypePing:
		if err := c.send(protocol.TypePing, nil); err != nil {
			c.logger.Debug().Err(err).Msg("Ping reply failed")
		}

	case protocol.TypeGameState:
		var state protocol.GameState
		if err := json.Unmarshal(msg.Data, &state); err != nil {
			c.logger.Warn().Err(err).Msg("Bad game state")
			return
		}
		c.playTurn(&state)

	case protocol.TypePrint:
		var p protocol.Print
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		c.logger.Info().Msgf("Server: %s", p.Text)

	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring frame")
	}
}

func (c *Client) playTurn(state *protocol.GameState) {
	resp := c.move(state)
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode response")
		return
	}
	move := protocol.Move{GameUUID: state.GameUUID, Response: payload}
	if err := c.send(protocol.TypeMove, move); err != nil {
		c.logger.Warn().Err(err).Str("game_uuid", state.GameUUID).Msg("Failed to send move")
	}
}

func (c *Client) send(msgType protocol.MessageType, data any) error {
	payload, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
