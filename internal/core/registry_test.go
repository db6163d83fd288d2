package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrtc/sfu/internal/domain"
)

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry(10, time.Minute)

	r1 := reg.GetOrCreate("r1")
	r2 := reg.GetOrCreate("r2")
	assert.NotSame(t, r1, r2)
	assert.Same(t, r1, reg.GetOrCreate("r1"), "same id maps to the same room")
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Get("r1")
	require.True(t, ok)
	assert.Same(t, r1, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistrySweepIdle(t *testing.T) {
	grace := time.Minute
	reg := NewRegistry(10, grace)
	reg.GetOrCreate("empty")
	occupied := reg.GetOrCreate("occupied")
	join(t, occupied, "alice")

	assert.Equal(t, 0, reg.SweepIdle(time.Now().Add(grace/2)), "grace not elapsed yet")
	assert.Equal(t, 2, reg.Len())

	assert.Equal(t, 1, reg.SweepIdle(time.Now().Add(2*grace)))
	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Get("empty")
	assert.False(t, ok, "idle room removed")
	_, ok = reg.Get("occupied")
	assert.True(t, ok, "occupied room survives any sweep")
}

func TestRegistryJoinDuringGraceKeepsRoom(t *testing.T) {
	grace := time.Minute
	reg := NewRegistry(10, grace)
	room := reg.GetOrCreate("r1")
	join(t, room, "alice")
	room.Leave("alice")

	// A new participant lands inside the grace window.
	join(t, room, "bob")

	assert.Equal(t, 0, reg.SweepIdle(time.Now().Add(24*time.Hour)))
	_, ok := reg.Get("r1")
	assert.True(t, ok)
}

func TestRegistryClosedRoomJoinRetries(t *testing.T) {
	grace := time.Minute
	reg := NewRegistry(10, grace)
	room := reg.GetOrCreate("r1")
	require.Equal(t, 1, reg.SweepIdle(time.Now().Add(2*grace)))

	// The stale handle reports closed; a retry lands in a fresh room.
	_, err := room.Join(NewPeerSession(&fakeSignal{}), domain.NewParticipant("alice", "Alice"))
	require.ErrorIs(t, err, ErrRoomClosed)

	fresh := reg.GetOrCreate("r1")
	assert.NotSame(t, room, fresh)
	_, err = fresh.Join(NewPeerSession(&fakeSignal{}), domain.NewParticipant("alice", "Alice"))
	assert.NoError(t, err)
}

func TestRegistryStats(t *testing.T) {
	reg := NewRegistry(10, time.Minute)
	room := reg.GetOrCreate("r1")
	join(t, room, "alice")
	reg.GetOrCreate("r2")

	stats := reg.Stats()
	require.Len(t, stats, 2)

	byID := make(map[string]domain.RoomStats, len(stats))
	for _, s := range stats {
		byID[s.RoomID] = s
	}
	assert.Equal(t, 1, byID["r1"].ParticipantCount)
	assert.Equal(t, 0, byID["r2"].ParticipantCount)
}
