package protocol

import "github.com/meshrtc/sfu/internal/domain"

// Error codes carried in the error message. Clients branch on the code,
// the message text is free-form.
const (
	CodeBadPayload      = 4000
	CodeOutOfSequence   = 4001
	CodeUnknownRoom     = 4002
	CodeRoomFull        = 4003
	CodeDuplicateID     = 4004
	CodeNegotiation     = 4005
	CodeScreenShareBusy = 4006
)

// ClientMessage is the closed set of inbound signaling messages.
// Decode returns exactly one of the variants below.
type ClientMessage interface {
	clientMessage()
}

type Join struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	Name        string `json:"name"`
}

type Offer struct {
	SDP string `json:"sdp"`
}

// Answer arrives when the client completes a server-initiated
// renegotiation.
type Answer struct {
	SDP string `json:"sdp"`
}

type Candidate struct {
	Candidate string `json:"candidate"`
}

type StateUpdate struct {
	Muted         bool `json:"muted"`
	VideoOn       bool `json:"video_on"`
	ScreenSharing bool `json:"screen_sharing"`
}

type StartScreenShare struct{}

type StopScreenShare struct{}

type Ping struct{}

type GetParticipants struct{}

func (Join) clientMessage()             {}
func (Offer) clientMessage()            {}
func (Answer) clientMessage()           {}
func (Candidate) clientMessage()        {}
func (StateUpdate) clientMessage()      {}
func (StartScreenShare) clientMessage() {}
func (StopScreenShare) clientMessage()  {}
func (Ping) clientMessage()             {}
func (GetParticipants) clientMessage()  {}

// ServerMessage is the closed set of outbound signaling messages. Each
// variant carries its own type tag so Encode stays a plain marshal.
type ServerMessage interface {
	serverMessage()
}

type JoinedReply struct {
	Type         string                   `json:"type"`
	YourID       string                   `json:"your_id"`
	Participants []domain.ParticipantInfo `json:"participants"`
}

func NewJoined(yourID string, participants []domain.ParticipantInfo) JoinedReply {
	if participants == nil {
		participants = []domain.ParticipantInfo{}
	}
	return JoinedReply{Type: "joined", YourID: yourID, Participants: participants}
}

type AnswerReply struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func NewAnswer(sdp string) AnswerReply {
	return AnswerReply{Type: "answer", SDP: sdp}
}

// OfferReply is a server-initiated renegotiation offer, sent when new
// forwarded tracks are attached to the subscriber's connection.
type OfferReply struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func NewOffer(sdp string) OfferReply {
	return OfferReply{Type: "offer", SDP: sdp}
}

type CandidateReply struct {
	Type      string `json:"type"`
	Candidate string `json:"candidate"`
}

func NewCandidate(candidate string) CandidateReply {
	return CandidateReply{Type: "candidate", Candidate: candidate}
}

type ParticipantJoined struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewParticipantJoined(id, name string) ParticipantJoined {
	return ParticipantJoined{Type: "participant_joined", ID: id, Name: name}
}

type ParticipantLeft struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
}

func NewParticipantLeft(id string) ParticipantLeft {
	return ParticipantLeft{Type: "participant_left", ParticipantID: id}
}

type StateUpdateEvent struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Muted         bool   `json:"muted"`
	VideoOn       bool   `json:"video_on"`
	ScreenSharing bool   `json:"screen_sharing"`
}

func NewStateUpdate(id string, muted, videoOn, screenSharing bool) StateUpdateEvent {
	return StateUpdateEvent{
		Type:          "state_update",
		ParticipantID: id,
		Muted:         muted,
		VideoOn:       videoOn,
		ScreenSharing: screenSharing,
	}
}

type ParticipantsReply struct {
	Type         string                   `json:"type"`
	Participants []domain.ParticipantInfo `json:"participants"`
}

func NewParticipants(participants []domain.ParticipantInfo) ParticipantsReply {
	if participants == nil {
		participants = []domain.ParticipantInfo{}
	}
	return ParticipantsReply{Type: "participants", Participants: participants}
}

type ScreenShareStarted struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
}

func NewScreenShareStarted(id string) ScreenShareStarted {
	return ScreenShareStarted{Type: "screen_share_started", ParticipantID: id}
}

type ScreenShareStopped struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
}

func NewScreenShareStopped(id string) ScreenShareStopped {
	return ScreenShareStopped{Type: "screen_share_stopped", ParticipantID: id}
}

type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong {
	return Pong{Type: "pong"}
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func NewError(code int, message string) ErrorReply {
	return ErrorReply{Type: "error", Message: message, Code: code}
}

type IceGatheringComplete struct {
	Type string `json:"type"`
}

func NewIceGatheringComplete() IceGatheringComplete {
	return IceGatheringComplete{Type: "ice_gathering_complete"}
}

func (JoinedReply) serverMessage()          {}
func (AnswerReply) serverMessage()          {}
func (OfferReply) serverMessage()           {}
func (CandidateReply) serverMessage()       {}
func (ParticipantJoined) serverMessage()    {}
func (ParticipantLeft) serverMessage()      {}
func (StateUpdateEvent) serverMessage()     {}
func (ParticipantsReply) serverMessage()    {}
func (ScreenShareStarted) serverMessage()   {}
func (ScreenShareStopped) serverMessage()   {}
func (Pong) serverMessage()                 {}
func (ErrorReply) serverMessage()           {}
func (IceGatheringComplete) serverMessage() {}
