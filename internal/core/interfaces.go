package core

import (
	"context"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// Frame is an encoded signaling payload.
type Frame []byte

// SignalSender abstracts the per-connection outbound signaling transport.
// TrySend must never block: a saturated receiver gets an error, not a
// stalled sender. Owned by the adapter; the adapter must Close() it.
type SignalSender interface {
	TrySend(Frame) error
	Close()
}

// MediaConn is the contract with the external WebRTC engine. The core
// treats it as an opaque, possibly-failing, asynchronous service; it does
// not reimplement ICE/DTLS/SRTP.
type MediaConn interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources.
	Close()
	// ApplyOffer sets the remote offer and returns the generated answer.
	ApplyOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// ApplyAnswer completes a server-initiated renegotiation.
	ApplyAnswer(answer webrtc.SessionDescription) error
	// CreateAndSetOffer starts a renegotiation after local tracks changed.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddLocalTrack attaches a local static RTP track for forwarding.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
	// WriteRTCP sends RTCP packets (PLI) towards the publisher.
	WriteRTCP(pkts []rtcp.Packet) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnICEGatheringComplete fires once local candidate gathering is done.
	OnICEGatheringComplete(func())
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnClosed sets a callback for media session cleanup.
	OnClosed(func())
}
