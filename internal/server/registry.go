package server

import (
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

// BotInfo is a read-only snapshot of one registered connection.
type BotInfo struct {
	ID       string
	Metadata protocol.BotMetadata
	LastSeen time.Time
}

// Registry tracks connected bot identities, their declared metadata
// and liveness. It has single-writer semantics: only the connection
// read pumps and the orchestrator mutate it, everyone else reads
// snapshots.
type Registry struct {
	mu    sync.RWMutex
	bots  map[string]*BotInfo
	clock quartz.Clock
}

// NewRegistry creates an empty registry using the given clock for
// last-activity timestamps.
func NewRegistry(clock quartz.Clock) *Registry {
	return &Registry{
		bots:  make(map[string]*BotInfo),
		clock: clock,
	}
}

// Register inserts or refreshes a connection and reports whether the
// identity was new. Only a new identity should trigger a registration
// broadcast.
func (r *Registry) Register(id string, meta protocol.BotMetadata) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if existing, ok := r.bots[id]; ok {
		existing.Metadata = meta
		existing.LastSeen = now
		return false
	}
	r.bots[id] = &BotInfo{ID: id, Metadata: meta, LastSeen: now}
	return true
}

// Touch refreshes last-activity without changing metadata. It reports
// whether the identity was known.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.bots[id]
	if !ok {
		return false
	}
	info.LastSeen = r.clock.Now()
	return true
}

// Snapshot returns an immutable copy of all live connections, ordered
// arbitrarily. Mutating the result does not affect the registry.
func (r *Registry) Snapshot() []BotInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BotInfo, 0, len(r.bots))
	for _, info := range r.bots {
		out = append(out, *info)
	}
	return out
}

// EvictStale removes entries whose last activity predates now-window
// and returns the evicted snapshots. Called once per tournament cycle,
// never mid-tournament.
func (r *Registry) EvictStale(now time.Time, window time.Duration) []BotInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []BotInfo
	cutoff := now.Add(-window)
	for id, info := range r.bots {
		if info.LastSeen.Before(cutoff) {
			evicted = append(evicted, *info)
			delete(r.bots, id)
		}
	}
	return evicted
}

// Remove drops an identity, typically on connection close.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bots, id)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}
