package server

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

// MoveEnvelope wraps an inbound move with the sender's connection
// identity so runners can reject out-of-turn responses.
type MoveEnvelope struct {
	BotID string
	Move  protocol.Move
}

// GameTransport is the runner-facing side of the router: delivery of
// frames to bots by opaque identity.
type GameTransport interface {
	SendToBot(botID string, msgType protocol.MessageType, data any) error
}

// Router demultiplexes frames between the external bot-facing channel
// and the internal per-game channels. It rewrites addressing only; it
// never interprets game content.
type Router struct {
	mu     sync.RWMutex
	bots   map[string]*Bot
	games  map[string]chan MoveEnvelope
	logger zerolog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		bots:   make(map[string]*Bot),
		games:  make(map[string]chan MoveEnvelope),
		logger: logger.With().Str("component", "router").Logger(),
	}
}

// BindBot associates a connection identity with its connection.
// Registration is the only path that binds.
func (r *Router) BindBot(id string, bot *Bot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[id] = bot
}

// UnbindBot removes an identity if it still maps to the given
// connection and reports whether it did. A re-registered identity on a
// fresh connection wins and stays bound.
func (r *Router) UnbindBot(id string, bot *Bot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.bots[id]; ok && current == bot {
		delete(r.bots, id)
		return true
	}
	return false
}

// OpenGame allocates the inbound move channel for a game. The buffer
// absorbs bursts from bots that answer more than once per request.
func (r *Router) OpenGame(gameID string) <-chan MoveEnvelope {
	ch := make(chan MoveEnvelope, 16)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[gameID] = ch
	return ch
}

// CloseGame removes a game's routing entry. Later moves for the game
// are late responses and get dropped with a log line.
func (r *Router) CloseGame(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// DispatchMove forwards a bot's move to the engine running the named
// game. Unknown games mean the bot answered too late.
func (r *Router) DispatchMove(botID string, move protocol.Move) {
	r.mu.RLock()
	ch, ok := r.games[move.GameUUID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug().
			Str("bot_id", botID).
			Str("game_uuid", move.GameUUID).
			Msg("Move for unknown game, bot responded too late")
		return
	}

	select {
	case ch <- MoveEnvelope{BotID: botID, Move: move}:
	default:
		r.logger.Warn().
			Str("bot_id", botID).
			Str("game_uuid", move.GameUUID).
			Msg("Game move buffer full, dropping move")
	}
}

// SendToBot delivers a frame to a bot by identity.
func (r *Router) SendToBot(botID string, msgType protocol.MessageType, data any) error {
	r.mu.RLock()
	bot, ok := r.bots[botID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBot, botID)
	}
	return bot.SendMessage(msgType, data)
}

// BotCount returns the number of bound connections.
func (r *Router) BotCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}
