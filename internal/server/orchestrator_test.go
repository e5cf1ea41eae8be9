package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diceforbots/diceforbots/internal/protocol"
	"github.com/diceforbots/diceforbots/internal/randutil"
)

type publishedFrame struct {
	msgType protocol.MessageType
	data    any
}

type stubPublisher struct {
	mu     sync.Mutex
	frames []publishedFrame
}

func (p *stubPublisher) Publish(msgType protocol.MessageType, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, publishedFrame{msgType: msgType, data: data})
}

func (p *stubPublisher) ofType(msgType protocol.MessageType) []publishedFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedFrame
	for _, f := range p.frames {
		if f.msgType == msgType {
			out = append(out, f)
		}
	}
	return out
}

func newTestOrchestrator(cfg Config) (*Orchestrator, *Registry, *stubPublisher) {
	clock := quartz.NewReal()
	registry := NewRegistry(clock)
	router := NewRouter(zerolog.Nop())
	pub := &stubPublisher{}
	o := NewOrchestrator(cfg, registry, router, pub, NewStandings(), randutil.New(7), clock, zerolog.Nop())
	return o, registry, pub
}

func TestFormGamesRespectsBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinPlayers = 2
	cfg.MaxPlayers = 4
	cfg.GamesPerBot = 3
	o, registry, _ := newTestOrchestrator(cfg)

	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		registry.Register(id, protocol.BotMetadata{Name: id})
	}
	roster := registry.Snapshot()

	games := o.formGames(roster)
	// 10 bots at 3 games each over an average size of 3 seats.
	assert.Len(t, games, 10)

	for _, seats := range games {
		assert.GreaterOrEqual(t, len(seats), cfg.MinPlayers)
		assert.LessOrEqual(t, len(seats), cfg.MaxPlayers)

		seen := make(map[string]bool)
		for _, seat := range seats {
			assert.False(t, seen[seat.BotID], "a bot holds at most one seat per game")
			seen[seat.BotID] = true
		}
	}
}

func TestFormGamesCapsSizeAtRoster(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinPlayers = 2
	cfg.MaxPlayers = 6
	o, registry, _ := newTestOrchestrator(cfg)

	registry.Register("a", protocol.BotMetadata{})
	registry.Register("b", protocol.BotMetadata{})

	for _, seats := range o.formGames(registry.Snapshot()) {
		assert.Len(t, seats, 2)
	}
}

func TestRunTournamentSkipsSmallRoster(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	o, registry, pub := newTestOrchestrator(cfg)
	registry.Register("lonely", protocol.BotMetadata{})

	o.runTournament(context.Background())
	assert.Empty(t, pub.frames, "no records published without a tournament")
}

// Two registered bots that never answer: every move times out, the
// game still completes and the cycle publishes its records.
func TestRunTournamentPublishesRecords(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinPlayers = 2
	cfg.MaxPlayers = 2
	cfg.GamesPerBot = 1
	cfg.DiceCount = 1
	cfg.MoveTimeout = 5 * time.Millisecond
	cfg.GameBudget = time.Second
	o, registry, pub := newTestOrchestrator(cfg)

	registry.Register("b1", protocol.BotMetadata{Player: "alice", Name: "one"})
	registry.Register("b2", protocol.BotMetadata{Player: "bob", Name: "two"})

	o.runTournament(context.Background())

	gameLogs := pub.ofType(protocol.TypeGameLog)
	require.Len(t, gameLogs, 1)
	gl := gameLogs[0].data.(*protocol.GameLog)
	assert.Len(t, gl.BotRankings, 2)
	assert.Equal(t, 1, gl.DiceCount)

	tourneyLogs := pub.ofType(protocol.TypeTourneyLog)
	require.Len(t, tourneyLogs, 1)
	tl := tourneyLogs[0].data.(*protocol.TourneyLog)
	assert.Equal(t, 0, tl.TourneyIndex)
	assert.Equal(t, gl.TourneyUUID, tl.TourneyUUID)
	assert.Len(t, tl.Bots, 2)
	assert.Equal(t, []string{gl.GameUUID}, tl.GameUUIDs)
	assert.Equal(t, Scoring531, tl.ScoringMethod)

	// Heads-up placements score 5 and 3.
	require.Len(t, tl.BotScores, 2)
	total := 0.0
	for _, s := range tl.BotScores {
		total += s
	}
	assert.Equal(t, 8.0, total)
	assert.Len(t, tl.PlayerScores, 2)

	// The next cycle carries the next index.
	o.runTournament(context.Background())
	tourneyLogs = pub.ofType(protocol.TypeTourneyLog)
	require.Len(t, tourneyLogs, 2)
	assert.Equal(t, 1, tourneyLogs[1].data.(*protocol.TourneyLog).TourneyIndex)

	// Both cycles landed on the leaderboard.
	assert.Equal(t, 2, o.standings.Snapshot().Tournaments)
}
