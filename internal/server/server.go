package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/diceforbots/diceforbots/internal/broadcast"
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// Server owns the two listening endpoints: the bot endpoint where
// clients register and play, and the broadcast endpoint where log
// subscribers watch.
type Server struct {
	cfg       Config
	registry  *Registry
	router    *Router
	hub       *broadcast.Hub
	standings *Standings
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewServer wires the websocket frontend over the shared registry,
// router, broadcast hub and leaderboard.
func NewServer(cfg Config, registry *Registry, router *Router, hub *broadcast.Hub, standings *Standings, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		router:    router,
		hub:       hub,
		standings: standings,
		logger:    logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run serves both endpoints until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	botMux := http.NewServeMux()
	botMux.HandleFunc("/ws", s.handleBotWS)
	botMux.HandleFunc("/health", s.handleHealth)
	botMux.HandleFunc("/standings", s.handleStandings)
	botSrv := &http.Server{Addr: s.cfg.BotAddress, Handler: botMux}

	pubMux := http.NewServeMux()
	pubMux.HandleFunc("/ws", s.handleBroadcastWS)
	pubSrv := &http.Server{Addr: s.cfg.BroadcastAddress, Handler: pubMux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("address", s.cfg.BotAddress).Msg("Bot endpoint listening")
		if err := botSrv.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("bot endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("address", s.cfg.BroadcastAddress).Msg("Broadcast endpoint listening")
		if err := pubSrv.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("broadcast endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = botSrv.Shutdown(shutdownCtx)
		_ = pubSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok bots=%d subscribers=%d\n", s.router.BotCount(), s.hub.SubscriberCount())
}

func (s *Server) handleStandings(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.standings.Snapshot()); err != nil {
		s.logger.Debug().Err(err).Msg("Standings encode failed")
	}
}

func (s *Server) handleBroadcastWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Broadcast upgrade failed")
		return
	}
	s.hub.Handle(conn)
}

func (s *Server) handleBotWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Bot upgrade failed")
		return
	}

	bot := NewBot(conn, s.logger)
	go bot.WritePump()
	bot.ReadPump(s.handleFrame)

	// The registry entry is dropped with the binding, but a fresh
	// connection that already re-registered the identity keeps both.
	if id := bot.ID(); id != "" {
		if s.router.UnbindBot(id, bot) {
			s.registry.Remove(id)
			s.logger.Info().Str("bot_id", id).Msg("Bot disconnected")
		}
	}
}

// handleFrame dispatches one decoded inbound frame. It runs on the
// connection's read pump, so per-connection handling is sequential.
func (s *Server) handleFrame(bot *Bot, frame protocol.BotFrame) {
	switch f := frame.(type) {
	case protocol.RegisterBot:
		s.handleRegister(bot, f.Metadata)

	case protocol.Ping:
		if id := bot.ID(); id != "" {
			s.registry.Touch(id)
		}
		if err := bot.SendMessage(protocol.TypePing, nil); err != nil {
			s.logger.Debug().Err(err).Str("bot_id", bot.ID()).Msg("Ping reply failed")
		}

	case protocol.Move:
		id := bot.ID()
		if id == "" {
			s.logger.Debug().Str("game_uuid", f.GameUUID).Msg("Move from unregistered connection, dropping")
			return
		}
		s.registry.Touch(id)
		s.router.DispatchMove(id, f)
	}
}

// handleRegister assigns or restores the connection identity and
// announces new bots on the broadcast stream. Re-registration with a
// known session uuid refreshes metadata without an announcement.
func (s *Server) handleRegister(bot *Bot, meta protocol.BotMetadata) {
	id := meta.SessionUUID
	if id == "" {
		id = uuid.NewString()
	}
	meta.SessionUUID = id
	if meta.FullTitle == "" {
		meta.FullTitle = fmt.Sprintf("%s %s (%s)", meta.Name, meta.Version, meta.Player)
	}

	bot.setID(id)
	s.router.BindBot(id, bot)
	if s.registry.Register(id, meta) {
		s.logger.Info().
			Str("bot_id", id).
			Str("bot_name", meta.Name).
			Str("player", meta.Player).
			Msg("Bot registered")
		s.hub.Publish(protocol.TypeRegisterBot, meta)
	}

	// The reply carries the session uuid so the bot can survive
	// reconnects under the same identity.
	if err := bot.SendMessage(protocol.TypeRegisterBot, meta); err != nil {
		s.logger.Debug().Err(err).Str("bot_id", id).Msg("Registration ack failed")
	}
}
