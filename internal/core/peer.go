package core

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/domain"
)

// SessionState is the lifecycle of one participant connection. Transitions
// are one-directional: Joining -> Active -> Leaving -> Closed, with the
// single shortcut Joining -> Closed when a join is rejected.
type SessionState int32

const (
	StateJoining SessionState = iota
	StateActive
	StateLeaving
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateLeaving:
		return "leaving"
	default:
		return "closed"
	}
}

// PeerSession binds one connection's signaling transport, its WebRTC
// engine handle and its participant identity. The participant record
// itself is owned by the Room; the session only keeps the back-reference
// for event correlation.
type PeerSession struct {
	signal SignalSender

	mu    sync.Mutex
	meta  *domain.Participant
	media MediaConn

	state    atomic.Int32
	teardown sync.Once
}

func NewPeerSession(signal SignalSender) *PeerSession {
	return &PeerSession{signal: signal}
}

func (s *PeerSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Activate moves the session into the room-attached state after a
// successful join.
func (s *PeerSession) Activate(meta *domain.Participant) error {
	if !s.state.CompareAndSwap(int32(StateJoining), int32(StateActive)) {
		return fmt.Errorf("%w: %s -> active", ErrInvalidTransition, s.State())
	}
	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()
	return nil
}

// BeginLeave marks the session as leaving. Returns false if the session
// already left, so cleanup runs at most once per connection.
func (s *PeerSession) BeginLeave() bool {
	return s.state.CompareAndSwap(int32(StateActive), int32(StateLeaving))
}

// CloseSession releases the media and signaling resources. Safe to call
// from concurrent close-and-error races; only the first call acts.
func (s *PeerSession) CloseSession() {
	s.teardown.Do(func() {
		s.state.Store(int32(StateClosed))
		s.mu.Lock()
		mc := s.media
		s.media = nil
		s.mu.Unlock()
		if mc != nil {
			mc.Close()
		}
		s.signal.Close()
	})
}

func (s *PeerSession) Meta() *domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *PeerSession) ID() domain.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return ""
	}
	return s.meta.ID
}

func (s *PeerSession) Signal() SignalSender { return s.signal }

func (s *PeerSession) UpdateMedia(mc MediaConn) {
	s.mu.Lock()
	old := s.media
	s.media = mc
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (s *PeerSession) Media() MediaConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// ApplyOffer forwards the client's offer to the engine and returns the
// generated answer SDP.
func (s *PeerSession) ApplyOffer(sdp string) (string, error) {
	mc := s.Media()
	if mc == nil {
		return "", fmt.Errorf("%w: no media connection", ErrNegotiation)
	}
	answer, err := mc.ApplyOffer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	return answer.SDP, nil
}

// ApplyAnswer completes a renegotiation the server started.
func (s *PeerSession) ApplyAnswer(sdp string) error {
	mc := s.Media()
	if mc == nil {
		return fmt.Errorf("%w: no media connection", ErrNegotiation)
	}
	if err := mc.ApplyAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	return nil
}

// AddICECandidate forwards a remote candidate. Failures are logged and
// swallowed: ICE gathering is lossy and retried by the client.
func (s *PeerSession) AddICECandidate(candidate string) {
	mc := s.Media()
	if mc == nil {
		log.Warn().Str("module", "core.peer").Str("participant", string(s.ID())).Msg("candidate before media connection")
		return
	}
	if err := mc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
		log.Warn().Err(err).Str("module", "core.peer").Str("participant", string(s.ID())).Msg("add ice candidate")
	}
}
