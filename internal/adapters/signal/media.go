package signal

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/adapters/rtc"
	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/protocol"
)

// handleOffer applies a client offer. The first offer also brings up the
// media connection and subscribes the peer to every track already
// published in the room.
func (ctl *Controller) handleOffer(ctx context.Context, cc *connection, m protocol.Offer) {
	if !ctl.requireJoined(cc) {
		return
	}

	first := cc.sess.Media() == nil
	if first {
		if err := ctl.attachMedia(ctx, cc); err != nil {
			log.Error().Err(err).Str("module", "signal").
				Str("participant", string(cc.sess.ID())).Msg("media setup failed")
			ctl.replyError(cc, protocol.CodeNegotiation, "media setup failed")
			return
		}
	}

	answer, err := cc.sess.ApplyOffer(m.SDP)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").
			Str("participant", string(cc.sess.ID())).Msg("offer rejected")
		ctl.replyError(cc, protocol.CodeNegotiation, "could not apply offer")
		return
	}
	ctl.reply(cc, protocol.NewAnswer(answer))

	if first {
		ctl.subscribeExisting(cc)
	}
}

func (ctl *Controller) handleAnswer(cc *connection, m protocol.Answer) {
	if !ctl.requireJoined(cc) {
		return
	}
	if err := cc.sess.ApplyAnswer(m.SDP); err != nil {
		if errors.Is(err, core.ErrNegotiation) {
			ctl.replyError(cc, protocol.CodeNegotiation, "could not apply answer")
			return
		}
		ctl.replyError(cc, protocol.CodeBadPayload, err.Error())
	}
}

// attachMedia builds the pion connection for this session and wires the
// engine callbacks back into signaling.
func (ctl *Controller) attachMedia(ctx context.Context, cc *connection) error {
	mc, err := rtc.NewConn(rtc.EngineConfig(ctl.Cfg.ICEServers), cc.sess.ID())
	if err != nil {
		return err
	}

	mc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		ctl.reply(cc, protocol.NewCandidate(cand.Candidate))
	})
	mc.OnICEGatheringComplete(func() {
		ctl.reply(cc, protocol.NewIceGatheringComplete())
	})
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		ctl.onRemoteTrack(trackCtx, cc, track)
	})
	mc.OnClosed(func() {
		// Closing the transport unwinds the readPump, which runs the
		// normal teardown path exactly once.
		cc.conn.Close()
	})

	if err := mc.Start(ctx); err != nil {
		mc.Close()
		return err
	}
	cc.sess.UpdateMedia(mc)
	return nil
}

// onRemoteTrack registers a freshly published track, starts its relay and
// fans it out to every other connected participant.
func (ctl *Controller) onRemoteTrack(ctx context.Context, cc *connection, track *webrtc.TrackRemote) {
	owner := cc.sess.ID()
	dtrack, err := cc.room.RegisterTrack(owner, track.ID())
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("participant", string(owner)).Str("track", track.ID()).Msg("track from detached session")
		return
	}

	relay := ctl.Relays.StartRelay(ctx, dtrack, track, cc.sess.Media())

	for _, other := range cc.room.Sessions(owner) {
		mc := other.Media()
		if mc == nil {
			continue
		}
		if _, err := relay.Subscribe(other.ID(), mc); err != nil {
			log.Warn().Err(err).Str("module", "signal").
				Str("subscriber", string(other.ID())).Str("track", track.ID()).Msg("subscribe failed")
			continue
		}
		ctl.renegotiate(other)
	}
}

// subscribeExisting attaches the newly connected peer to every track the
// rest of the room already publishes, then renegotiates once.
func (ctl *Controller) subscribeExisting(cc *connection) {
	mc := cc.sess.Media()
	if mc == nil {
		return
	}
	added := 0
	for _, other := range cc.room.Sessions(cc.sess.ID()) {
		for _, relay := range ctl.Relays.RelaysOf(other.ID()) {
			if _, err := relay.Subscribe(cc.sess.ID(), mc); err != nil {
				log.Warn().Err(err).Str("module", "signal").
					Str("subscriber", string(cc.sess.ID())).Str("track", relay.Track.ID).Msg("subscribe failed")
				continue
			}
			added++
		}
	}
	if added > 0 {
		ctl.renegotiate(cc.sess)
	}
}

// renegotiate sends a server-initiated offer carrying the tracks added
// since the last negotiation. The client responds with an answer message.
func (ctl *Controller) renegotiate(sess *core.PeerSession) {
	mc := sess.Media()
	if mc == nil {
		return
	}
	offer, err := mc.CreateAndSetOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").
			Str("participant", string(sess.ID())).Msg("renegotiation offer failed")
		return
	}
	data, err := protocol.Encode(protocol.NewOffer(offer.SDP))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode renegotiation offer")
		return
	}
	if err := sess.Signal().TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("participant", string(sess.ID())).Msg("renegotiation offer dropped")
	}
}
