package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStatePaused
	TrackStateDelete
)

// RTPWriter is the subset of *webrtc.TrackLocalStaticRTP the relay needs.
type RTPWriter interface {
	WriteRTP(*rtp.Packet) error
}

// OutTrack represents a single outgoing track towards one subscriber.
type OutTrack struct {
	Writer RTPWriter
	state  atomic.Int32 // zero value is TrackStateOk
}

func NewOutTrack(w RTPWriter) *OutTrack {
	return &OutTrack{Writer: w}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkPaused() {
	ot.state.Store(int32(TrackStatePaused))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
