package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/domain"
)

// Room is the authoritative registry of participants for one room id and
// the routing decision point for every outbound event. The embedded lock
// guards the participant set and presentation flags; it is never held
// across a transport or engine call.
type Room struct {
	ID  domain.RoomID
	max int

	mu         sync.RWMutex
	sessions   map[domain.ParticipantID]*PeerSession
	closed     bool
	createdAt  time.Time
	emptySince time.Time
}

func NewRoom(id domain.RoomID, maxParticipants int) *Room {
	now := time.Now()
	log.Info().Str("module", "core.room").Str("room", string(id)).Msg("room created")
	return &Room{
		ID:         id,
		max:        maxParticipants,
		sessions:   make(map[domain.ParticipantID]*PeerSession),
		createdAt:  now,
		emptySince: now,
	}
}

// Join attaches a session under the given identity and returns the roster
// of the other participants for the joined reply. The caller broadcasts
// participant_joined afterwards.
func (r *Room) Join(sess *PeerSession, meta *domain.Participant) ([]domain.ParticipantInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if len(r.sessions) >= r.max {
		return nil, ErrRoomFull
	}
	if _, ok := r.sessions[meta.ID]; ok {
		return nil, ErrDuplicateID
	}
	if err := sess.Activate(meta); err != nil {
		return nil, err
	}

	roster := make([]domain.ParticipantInfo, 0, len(r.sessions))
	for _, other := range r.sessions {
		roster = append(roster, other.Meta().Info())
	}
	r.sessions[meta.ID] = sess
	r.emptySince = time.Time{}
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).
		Str("participant", string(meta.ID)).Int("count", len(r.sessions)).Msg("participant joined")
	return roster, nil
}

// Leave removes the participant and discards its tracks. Idempotent: the
// second call for the same id is a no-op and reports false.
func (r *Room) Leave(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	clear(sess.Meta().Tracks)
	if len(r.sessions) == 0 {
		r.emptySince = time.Now()
	}
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).
		Str("participant", string(id)).Int("count", len(r.sessions)).Msg("participant left")
	return true
}

// Broadcast delivers an encoded event to every active participant except
// the originator. Delivery is best-effort per peer: a failed or saturated
// recipient is logged and skipped, never aborting the rest.
func (r *Room) Broadcast(data Frame, exclude domain.ParticipantID) {
	r.mu.RLock()
	targets := make([]*PeerSession, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == exclude || sess.State() != StateActive {
			continue
		}
		targets = append(targets, sess)
	}
	r.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.Signal().TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.ID)).
				Str("recipient", string(sess.ID())).Msg("broadcast delivery failed")
		}
	}
}

// Sessions returns the active sessions other than exclude. Used by the
// media fan-out to subscribe peers outside the room lock.
func (r *Room) Sessions(exclude domain.ParticipantID) []*PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerSession, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == exclude || sess.State() != StateActive {
			continue
		}
		out = append(out, sess)
	}
	return out
}

func (r *Room) Session(id domain.ParticipantID) (*PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the full roster, for the participants reply.
func (r *Room) Snapshot() []domain.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.Meta().Info())
	}
	return out
}

// SetState applies a state_update. A transition to screen_sharing=true is
// subject to the exclusivity rule: the first sharer wins, later requests
// are rejected with ErrScreenShareBusy.
func (r *Room) SetState(id domain.ParticipantID, muted, videoOn, screenSharing bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return ErrNotInRoom
	}
	if screenSharing {
		if sharer := r.screenSharerLocked(); sharer != "" && sharer != id {
			return ErrScreenShareBusy
		}
	}
	meta := sess.Meta()
	meta.Muted = muted
	meta.VideoOn = videoOn
	meta.ScreenSharing = screenSharing
	return nil
}

// StartScreenShare marks the participant as the room's single sharer.
func (r *Room) StartScreenShare(id domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return ErrNotInRoom
	}
	if sharer := r.screenSharerLocked(); sharer != "" && sharer != id {
		return ErrScreenShareBusy
	}
	sess.Meta().ScreenSharing = true
	return nil
}

// StopScreenShare clears the flag and drops the participant's screen
// tracks. Idempotent.
func (r *Room) StopScreenShare(id domain.ParticipantID) ([]domain.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotInRoom
	}
	meta := sess.Meta()
	meta.ScreenSharing = false
	var removed []domain.Track
	for trackID, track := range meta.Tracks {
		if track.Kind == domain.KindScreen {
			removed = append(removed, track)
			delete(meta.Tracks, trackID)
		}
	}
	return removed, nil
}

func (r *Room) screenSharerLocked() domain.ParticipantID {
	for id, sess := range r.sessions {
		if sess.Meta().ScreenSharing {
			return id
		}
	}
	return ""
}

// RegisterTrack classifies and records a track the engine signalled for
// the given owner. Classification happens once here, never per packet.
func (r *Room) RegisterTrack(owner domain.ParticipantID, trackID string) (domain.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[owner]
	if !ok {
		return domain.Track{}, ErrNotInRoom
	}
	track := domain.NewTrack(trackID, owner)
	sess.Meta().Tracks[trackID] = track
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).
		Str("participant", string(owner)).Str("track", trackID).
		Stringer("kind", track.Kind).Msg("track registered")
	return track, nil
}

func (r *Room) RemoveTrack(owner domain.ParticipantID, trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[owner]; ok {
		delete(sess.Meta().Tracks, trackID)
	}
}

// CloseIfIdle marks the room closed when it has been empty for at least
// grace. Emptiness is re-validated under the lock immediately before the
// decision, so a join racing the sweep either lands first or observes
// ErrRoomClosed and retries against a fresh room.
func (r *Room) CloseIfIdle(now time.Time, grace time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.sessions) > 0 || r.emptySince.IsZero() {
		return false
	}
	if now.Sub(r.emptySince) < grace {
		return false
	}
	r.closed = true
	return true
}

func (r *Room) Stats() domain.RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tracks := 0
	for _, sess := range r.sessions {
		tracks += len(sess.Meta().Tracks)
	}
	return domain.RoomStats{
		RoomID:           string(r.ID),
		ParticipantCount: len(r.sessions),
		ActiveTracks:     tracks,
	}
}
