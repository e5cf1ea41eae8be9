package server

import (
	"sort"
	"sync"
)

// PlayerStanding is one player's accumulated results across
// tournament cycles.
type PlayerStanding struct {
	Player      string  `json:"player"`
	Tournaments int     `json:"tournaments"`
	TotalScore  float64 `json:"total_score"`
	MeanScore   float64 `json:"mean_score"`
	BestScore   float64 `json:"best_score"`
}

// StandingsSnapshot is the exported view of the leaderboard, ordered
// by total score descending.
type StandingsSnapshot struct {
	Tournaments int              `json:"tournaments"`
	Players     []PlayerStanding `json:"players"`
}

// Standings accumulates player scores across tournaments for the
// leaderboard endpoint. Scores reset with the process.
type Standings struct {
	mu          sync.RWMutex
	tournaments int
	players     map[string]*PlayerStanding
}

// NewStandings creates an empty leaderboard.
func NewStandings() *Standings {
	return &Standings{players: make(map[string]*PlayerStanding)}
}

// RecordTournament folds one cycle's player scores into the totals.
func (s *Standings) RecordTournament(playerScores map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tournaments++
	for player, score := range playerScores {
		ps, ok := s.players[player]
		if !ok {
			ps = &PlayerStanding{Player: player}
			s.players[player] = ps
		}
		ps.Tournaments++
		ps.TotalScore += score
		if score > ps.BestScore {
			ps.BestScore = score
		}
	}
}

// Snapshot returns the current leaderboard. Ties break on player name
// so the order is stable.
func (s *Standings) Snapshot() StandingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := StandingsSnapshot{
		Tournaments: s.tournaments,
		Players:     make([]PlayerStanding, 0, len(s.players)),
	}
	for _, ps := range s.players {
		entry := *ps
		if entry.Tournaments > 0 {
			entry.MeanScore = entry.TotalScore / float64(entry.Tournaments)
		}
		out.Players = append(out.Players, entry)
	}
	sort.Slice(out.Players, func(i, j int) bool {
		if out.Players[i].TotalScore != out.Players[j].TotalScore {
			return out.Players[i].TotalScore > out.Players[j].TotalScore
		}
		return out.Players[i].Player < out.Players[j].Player
	})
	return out
}
