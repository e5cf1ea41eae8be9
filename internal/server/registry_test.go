package server

import (
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

func TestRegistryRegisterNewAndRefresh(t *testing.T) {
	t.Parallel()
	r := NewRegistry(quartz.NewReal())

	require.True(t, r.Register("bot-1", protocol.BotMetadata{Name: "alpha"}))
	assert.False(t, r.Register("bot-1", protocol.BotMetadata{Name: "alpha-v2"}), "re-registration is not new")
	assert.Equal(t, 1, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "alpha-v2", snap[0].Metadata.Name, "re-registration refreshes metadata")
}

func TestRegistryTouch(t *testing.T) {
	t.Parallel()
	r := NewRegistry(quartz.NewReal())

	assert.False(t, r.Touch("missing"))

	r.Register("bot-1", protocol.BotMetadata{Name: "alpha"})
	before := r.Snapshot()[0].LastSeen
	time.Sleep(time.Millisecond)
	require.True(t, r.Touch("bot-1"))
	assert.True(t, r.Snapshot()[0].LastSeen.After(before))
}

func TestRegistryEvictStale(t *testing.T) {
	t.Parallel()
	clock := quartz.NewReal()
	r := NewRegistry(clock)

	r.Register("bot-1", protocol.BotMetadata{Name: "alpha"})
	r.Register("bot-2", protocol.BotMetadata{Name: "beta"})

	// Nothing is stale within the window.
	assert.Empty(t, r.EvictStale(clock.Now(), time.Minute))
	assert.Equal(t, 2, r.Len())

	// From an hour in the future everything is stale.
	evicted := r.EvictStale(clock.Now().Add(time.Hour), time.Minute)
	assert.Len(t, evicted, 2)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemove(t *testing.T) {
	t.Parallel()
	r := NewRegistry(quartz.NewReal())

	r.Register("bot-1", protocol.BotMetadata{})
	r.Remove("bot-1")
	r.Remove("bot-1") // idempotent
	assert.Equal(t, 0, r.Len())
}
