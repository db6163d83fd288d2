package sfu

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/domain"
)

type relayKey struct {
	owner   domain.ParticipantID
	trackID string
}

// Manager owns all live relays, keyed by publishing participant and track
// id. A participant can publish several tracks at once (mic, camera,
// screen), each with its own relay.
type Manager struct {
	mu     sync.RWMutex
	relays map[relayKey]*Relay
}

func NewManager() *Manager {
	return &Manager{relays: make(map[relayKey]*Relay)}
}

// StartRelay spins up the forwarding loop for a freshly arrived source
// track. An existing relay for the same key is replaced, which covers a
// client re-offering the same track after a renegotiation.
func (m *Manager) StartRelay(ctx context.Context, track domain.Track, src SourceTrack, pub core.MediaConn) *Relay {
	logger := log.With().
		Str("module", "sfu.relay").
		Str("owner", string(track.Owner)).
		Str("track", track.ID).
		Stringer("kind", track.Kind).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, src, pub, cancel)

	key := relayKey{owner: track.Owner, trackID: track.ID}
	m.mu.Lock()
	if old, ok := m.relays[key]; ok {
		logger.Info().Msg("replacing existing relay")
		old.Stop()
	}
	m.relays[key] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
	return relay
}

// RelaysOf returns the live relays published by one participant.
func (m *Manager) RelaysOf(owner domain.ParticipantID) []*Relay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Relay
	for key, relay := range m.relays {
		if key.owner == owner {
			out = append(out, relay)
		}
	}
	return out
}

// StopOwner stops and removes every relay the participant publishes.
func (m *Manager) StopOwner(owner domain.ParticipantID) {
	m.mu.Lock()
	var stopped []*Relay
	for key, relay := range m.relays {
		if key.owner == owner {
			stopped = append(stopped, relay)
			delete(m.relays, key)
		}
	}
	m.mu.Unlock()
	for _, relay := range stopped {
		relay.Stop()
	}
}

// StopTrack stops a single relay, e.g. on stop_screen_share.
func (m *Manager) StopTrack(owner domain.ParticipantID, trackID string) bool {
	key := relayKey{owner: owner, trackID: trackID}
	m.mu.Lock()
	relay, ok := m.relays[key]
	if ok {
		delete(m.relays, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	relay.Stop()
	return true
}

// Unsubscribe detaches a leaving participant from every relay it consumes.
func (m *Manager) Unsubscribe(dst domain.ParticipantID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, relay := range m.relays {
		relay.MarkSubscriberDelete(dst)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relays)
}
