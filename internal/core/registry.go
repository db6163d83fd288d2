package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/domain"
)

// Registry is the process-wide map from room id to Room. Rooms are created
// on first join and destroyed by the idle sweep once they stay empty past
// the grace period. One lock guards the map; each room carries its own, so
// no room blocks another.
type Registry struct {
	maxParticipants int
	grace           time.Duration

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry(maxParticipants int, grace time.Duration) *Registry {
	return &Registry{
		maxParticipants: maxParticipants,
		grace:           grace,
		rooms:           make(map[domain.RoomID]*Room),
	}
}

func (reg *Registry) GetOrCreate(id domain.RoomID) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return room
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok = reg.rooms[id]; ok {
		return room
	}
	room = NewRoom(id, reg.maxParticipants)
	reg.rooms[id] = room
	return room
}

func (reg *Registry) Get(id domain.RoomID) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	return room, ok
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// SweepIdle removes rooms whose idle grace elapsed. Safe to run
// concurrently with joins: each room re-validates emptiness under its own
// lock and flags itself closed before removal, so a racing join retries
// against a fresh room instead of landing in a destroyed one.
func (reg *Registry) SweepIdle(now time.Time) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	removed := 0
	for id, room := range reg.rooms {
		if room.CloseIfIdle(now, reg.grace) {
			delete(reg.rooms, id)
			removed++
			log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("idle room removed")
		}
	}
	return removed
}

func (reg *Registry) Stats() []domain.RoomStats {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	out := make([]domain.RoomStats, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Stats())
	}
	return out
}

// Close drops every room at shutdown.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	clear(reg.rooms)
}
