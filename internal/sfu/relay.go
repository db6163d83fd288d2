// Package sfu forwards RTP from each published track to every subscribed
// peer. One relay goroutine per source track; the hot path does no
// classification and no allocation beyond the fan-out snapshot.
package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/domain"
)

// SourceTrack is the subset of *webrtc.TrackRemote the relay reads.
type SourceTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	SSRC() webrtc.SSRC
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Relay pumps one source track to its subscribers. Presentation flags are
// advisory signaling metadata: the relay never filters packets on muted or
// video_on, suppression is the sending client's job.
type Relay struct {
	Track domain.Track

	src SourceTrack
	pub core.MediaConn

	mu  sync.RWMutex
	out map[domain.ParticipantID]*OutTrack

	// subMu serializes Subscribe so concurrent requests for the same
	// subscriber attach exactly one sender to its connection.
	subMu sync.Mutex

	cancel context.CancelFunc
}

func NewRelay(track domain.Track, src SourceTrack, pub core.MediaConn, cancel context.CancelFunc) *Relay {
	return &Relay{
		Track:  track,
		src:    src,
		pub:    pub,
		out:    make(map[domain.ParticipantID]*OutTrack),
		cancel: cancel,
	}
}

// Subscribe attaches a new out track for dst and returns the local track
// so the caller can renegotiate the subscriber's connection. Idempotent
// per subscriber: a second request while the first out track is live
// reuses it instead of attaching a duplicate sender. For video sources a
// PLI is sent to the publisher so the subscriber gets a keyframe promptly.
func (r *Relay) Subscribe(dst domain.ParticipantID, mc core.MediaConn) (*webrtc.TrackLocalStaticRTP, error) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	r.mu.RLock()
	existing, ok := r.out[dst]
	r.mu.RUnlock()
	if ok && existing.GetState() != TrackStateDelete {
		local, _ := existing.Writer.(*webrtc.TrackLocalStaticRTP)
		return local, nil
	}

	local, err := webrtc.NewTrackLocalStaticRTP(
		r.src.Codec().RTPCodecCapability,
		r.src.ID(),
		string(r.Track.Owner),
	)
	if err != nil {
		return nil, err
	}
	sender, err := mc.AddLocalTrack(local)
	if err != nil {
		return nil, err
	}
	go drainRTCP(sender)

	r.mu.Lock()
	r.out[dst] = NewOutTrack(local)
	r.mu.Unlock()

	if r.src.Kind() == webrtc.RTPCodecTypeVideo && r.pub != nil {
		_ = r.pub.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(r.src.SSRC())},
		})
	}
	return local, nil
}

// drainRTCP keeps the interceptor pipeline moving for an attached sender.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (r *Relay) AddOutTrack(dst domain.ParticipantID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out[dst] = ot
}

func (r *Relay) MarkSubscriberDelete(dst domain.ParticipantID) {
	r.mu.RLock()
	ot, ok := r.out[dst]
	r.mu.RUnlock()
	if ok {
		ot.MarkDelete()
	}
}

func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.markAllDelete()
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.out {
		ot.MarkDelete()
	}
}

// loop reads RTP packets from the source track and forwards them to all
// out tracks until the source ends or the relay is stopped.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[domain.ParticipantID]*OutTrack, len(r.out))
	maps.Copy(snapshot, r.out)
	r.mu.RUnlock()

	var dirty []domain.ParticipantID
	for dst, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dst)
		case TrackStatePaused:
		case TrackStateOk:
			if err := ot.Writer.WriteRTP(pkt); err != nil {
				logger.Warn().Err(err).Str("dst", string(dst)).Msg("relay write failed, dropping subscriber")
				ot.MarkDelete()
				dirty = append(dirty, dst)
			}
		}
	}

	// Cleanup outside the read lock.
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, dst := range dirty {
			delete(r.out, dst)
		}
		r.mu.Unlock()
	}
}

func (r *Relay) subscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.out)
}
