package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want ClientMessage
	}{
		{
			name: "join",
			data: `{"type":"join","room":"r1","participant":"alice","name":"Alice"}`,
			want: Join{Room: "r1", Participant: "alice", Name: "Alice"},
		},
		{
			name: "join without participant id",
			data: `{"type":"join","room":"r1","name":"Alice"}`,
			want: Join{Room: "r1", Name: "Alice"},
		},
		{
			name: "offer",
			data: `{"type":"offer","sdp":"v=0..."}`,
			want: Offer{SDP: "v=0..."},
		},
		{
			name: "answer",
			data: `{"type":"answer","sdp":"v=0..."}`,
			want: Answer{SDP: "v=0..."},
		},
		{
			name: "candidate",
			data: `{"type":"candidate","candidate":"candidate:1 1 udp ..."}`,
			want: Candidate{Candidate: "candidate:1 1 udp ..."},
		},
		{
			name: "state update",
			data: `{"type":"state_update","muted":true,"video_on":false,"screen_sharing":true}`,
			want: StateUpdate{Muted: true, VideoOn: false, ScreenSharing: true},
		},
		{
			name: "start screen share",
			data: `{"type":"start_screen_share"}`,
			want: StartScreenShare{},
		},
		{
			name: "stop screen share",
			data: `{"type":"stop_screen_share"}`,
			want: StopScreenShare{},
		},
		{
			name: "ping",
			data: `{"type":"ping"}`,
			want: Ping{},
		},
		{
			name: "get participants",
			data: `{"type":"get_participants"}`,
			want: GetParticipants{},
		},
		{
			name: "unknown fields ignored",
			data: `{"type":"ping","extra":"ignored"}`,
			want: Ping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantTag string
	}{
		{name: "not json", data: `{{{`},
		{name: "unknown type", data: `{"type":"hangup"}`, wantTag: "hangup"},
		{name: "empty type", data: `{"room":"r1"}`},
		{name: "wrong field type", data: `{"type":"offer","sdp":42}`, wantTag: "offer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.data))
			assert.Nil(t, msg)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantTag, de.Tag)
		})
	}
}

func TestEncodeCarriesTypeTag(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
		want string
	}{
		{name: "joined", msg: NewJoined("alice", nil), want: "joined"},
		{name: "answer", msg: NewAnswer("v=0"), want: "answer"},
		{name: "offer", msg: NewOffer("v=0"), want: "offer"},
		{name: "candidate", msg: NewCandidate("candidate:1"), want: "candidate"},
		{name: "participant joined", msg: NewParticipantJoined("bob", "Bob"), want: "participant_joined"},
		{name: "participant left", msg: NewParticipantLeft("bob"), want: "participant_left"},
		{name: "state update", msg: NewStateUpdate("bob", true, true, false), want: "state_update"},
		{name: "participants", msg: NewParticipants(nil), want: "participants"},
		{name: "screen share started", msg: NewScreenShareStarted("bob"), want: "screen_share_started"},
		{name: "screen share stopped", msg: NewScreenShareStopped("bob"), want: "screen_share_stopped"},
		{name: "pong", msg: NewPong(), want: "pong"},
		{name: "error", msg: NewError(CodeRoomFull, "room is full"), want: "error"},
		{name: "gathering complete", msg: NewIceGatheringComplete(), want: "ice_gathering_complete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			var env struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(data, &env))
			assert.Equal(t, tt.want, env.Type)
		})
	}
}

func TestJoinedReplyEmptyRoster(t *testing.T) {
	data, err := Encode(NewJoined("alice", nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"participants":[]`, "roster must encode as an array, never null")
}

func TestErrorReplyPayload(t *testing.T) {
	data, err := Encode(NewError(CodeScreenShareBusy, "busy"))
	require.NoError(t, err)

	var got ErrorReply
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, CodeScreenShareBusy, got.Code)
	assert.Equal(t, "busy", got.Message)
}
