package signal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/domain"
	"github.com/meshrtc/sfu/internal/protocol"
)

// dispatch routes one decoded frame. Returns true when the connection must
// close (fatal errors per the protocol: full room, duplicate id).
func (ctl *Controller) dispatch(ctx context.Context, cc *connection, data []byte) bool {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad frame")
		ctl.replyError(cc, protocol.CodeBadPayload, "malformed signaling message")
		return false
	}

	switch m := msg.(type) {
	case protocol.Join:
		return ctl.handleJoin(cc, m)
	case protocol.Offer:
		ctl.handleOffer(ctx, cc, m)
	case protocol.Answer:
		ctl.handleAnswer(cc, m)
	case protocol.Candidate:
		ctl.handleCandidate(cc, m)
	case protocol.StateUpdate:
		ctl.handleStateUpdate(cc, m)
	case protocol.StartScreenShare:
		ctl.handleStartScreenShare(cc)
	case protocol.StopScreenShare:
		ctl.handleStopScreenShare(cc)
	case protocol.Ping:
		ctl.reply(cc, protocol.NewPong())
	case protocol.GetParticipants:
		ctl.handleGetParticipants(cc)
	}
	return false
}

// requireJoined rejects messages that are out of sequence for the session
// state; everything except join is invalid before a successful join.
func (ctl *Controller) requireJoined(cc *connection) bool {
	if cc.room == nil || cc.sess.State() != core.StateActive {
		ctl.replyError(cc, protocol.CodeOutOfSequence, "join a room first")
		return false
	}
	return true
}

func (ctl *Controller) handleJoin(cc *connection, m protocol.Join) bool {
	if cc.sess.State() != core.StateJoining {
		ctl.replyError(cc, protocol.CodeOutOfSequence, "already joined")
		return false
	}
	if m.Room == "" {
		ctl.replyError(cc, protocol.CodeBadPayload, "room must not be empty")
		return false
	}
	id := m.Participant
	if id == "" {
		id = uuid.NewString()
	}
	meta := domain.NewParticipant(domain.ParticipantID(id), m.Name)

	// GetOrCreate can hand back a room the idle sweep is destroying;
	// Join reports that and the retry lands in a fresh room.
	var (
		roster []domain.ParticipantInfo
		err    error
	)
	for {
		room := ctl.Registry.GetOrCreate(domain.RoomID(m.Room))
		roster, err = room.Join(cc.sess, meta)
		if errors.Is(err, core.ErrRoomClosed) {
			continue
		}
		if err == nil {
			cc.room = room
		}
		break
	}

	switch {
	case errors.Is(err, core.ErrRoomFull):
		ctl.replyError(cc, protocol.CodeRoomFull, "room is full")
		return true
	case errors.Is(err, core.ErrDuplicateID):
		ctl.replyError(cc, protocol.CodeDuplicateID, "participant id already in use")
		return true
	case err != nil:
		ctl.replyError(cc, protocol.CodeBadPayload, err.Error())
		return true
	}

	log.Info().Str("module", "signal").Str("room", m.Room).
		Str("participant", id).Msg("join accepted")
	ctl.reply(cc, protocol.NewJoined(id, roster))
	ctl.broadcast(cc, protocol.NewParticipantJoined(id, m.Name))
	return false
}

func (ctl *Controller) handleCandidate(cc *connection, m protocol.Candidate) {
	if !ctl.requireJoined(cc) {
		return
	}
	// Failures stay server-side: ICE gathering is lossy by design and the
	// client keeps trickling candidates.
	cc.sess.AddICECandidate(m.Candidate)
}

func (ctl *Controller) handleStateUpdate(cc *connection, m protocol.StateUpdate) {
	if !ctl.requireJoined(cc) {
		return
	}
	id := cc.sess.ID()
	err := cc.room.SetState(id, m.Muted, m.VideoOn, m.ScreenSharing)
	if errors.Is(err, core.ErrScreenShareBusy) {
		ctl.replyError(cc, protocol.CodeScreenShareBusy, "another participant is screen sharing")
		return
	}
	if err != nil {
		ctl.replyError(cc, protocol.CodeOutOfSequence, err.Error())
		return
	}
	ctl.broadcast(cc, protocol.NewStateUpdate(string(id), m.Muted, m.VideoOn, m.ScreenSharing))
}

func (ctl *Controller) handleStartScreenShare(cc *connection) {
	if !ctl.requireJoined(cc) {
		return
	}
	id := cc.sess.ID()
	err := cc.room.StartScreenShare(id)
	if errors.Is(err, core.ErrScreenShareBusy) {
		ctl.replyError(cc, protocol.CodeScreenShareBusy, "another participant is screen sharing")
		return
	}
	if err != nil {
		ctl.replyError(cc, protocol.CodeOutOfSequence, err.Error())
		return
	}
	ctl.broadcast(cc, protocol.NewScreenShareStarted(string(id)))
}

func (ctl *Controller) handleStopScreenShare(cc *connection) {
	if !ctl.requireJoined(cc) {
		return
	}
	id := cc.sess.ID()
	removed, err := cc.room.StopScreenShare(id)
	if err != nil {
		ctl.replyError(cc, protocol.CodeOutOfSequence, err.Error())
		return
	}
	for _, track := range removed {
		ctl.Relays.StopTrack(id, track.ID)
	}
	ctl.broadcast(cc, protocol.NewScreenShareStopped(string(id)))
}

func (ctl *Controller) handleGetParticipants(cc *connection) {
	if !ctl.requireJoined(cc) {
		return
	}
	ctl.reply(cc, protocol.NewParticipants(cc.room.Snapshot()))
}

// teardown runs once per connection, on transport close or fatal protocol
// error. It always drives the session to Closed and, if the session was
// active, performs the implicit leave.
func (ctl *Controller) teardown(cc *connection) {
	id := cc.sess.ID()
	if cc.sess.BeginLeave() && cc.room != nil {
		ctl.Relays.StopOwner(id)
		ctl.Relays.Unsubscribe(id)
		if cc.room.Leave(id) {
			ctl.broadcast(cc, protocol.NewParticipantLeft(string(id)))
		}
	}
	cc.sess.CloseSession()
}
