package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrtc/sfu/internal/config"
	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/protocol"
	"github.com/meshrtc/sfu/internal/sfu"
)

func newTestController(maxParticipants int) *Controller {
	cfg := &config.Config{
		MaxParticipantsPerRoom: maxParticipants,
		RoomGracePeriod:        time.Minute,
	}
	return NewController(cfg, core.NewRegistry(maxParticipants, time.Minute), sfu.NewManager())
}

// newTestConn builds a connection whose outbound frames land in the send
// channel instead of a socket.
func newTestConn() *connection {
	ws := &wsConn{send: make(chan core.Frame, 32)}
	return &connection{conn: ws, sess: core.NewPeerSession(ws)}
}

func takeFrame(t *testing.T, cc *connection) map[string]any {
	t.Helper()
	select {
	case data := <-cc.conn.send:
		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		return got
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func assertNoFrame(t *testing.T, cc *connection) {
	t.Helper()
	select {
	case data := <-cc.conn.send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func dispatchRaw(t *testing.T, ctl *Controller, cc *connection, raw string) bool {
	t.Helper()
	return ctl.dispatch(context.Background(), cc, []byte(raw))
}

func joinRoom(t *testing.T, ctl *Controller, room, id, name string) *connection {
	t.Helper()
	cc := newTestConn()
	done := dispatchRaw(t, ctl, cc,
		`{"type":"join","room":"`+room+`","participant":"`+id+`","name":"`+name+`"}`)
	require.False(t, done)
	got := takeFrame(t, cc)
	require.Equal(t, "joined", got["type"])
	return cc
}

func TestDispatchBadPayload(t *testing.T) {
	ctl := newTestController(10)
	cc := newTestConn()

	done := dispatchRaw(t, ctl, cc, `{{{`)
	assert.False(t, done, "malformed frames never kill the connection")
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeBadPayload), got["code"])
}

func TestDispatchUnknownType(t *testing.T) {
	ctl := newTestController(10)
	cc := newTestConn()

	dispatchRaw(t, ctl, cc, `{"type":"hangup"}`)
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeBadPayload), got["code"])
}

func TestDispatchBeforeJoin(t *testing.T) {
	ctl := newTestController(10)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "offer", raw: `{"type":"offer","sdp":"v=0"}`},
		{name: "answer", raw: `{"type":"answer","sdp":"v=0"}`},
		{name: "candidate", raw: `{"type":"candidate","candidate":"c"}`},
		{name: "state update", raw: `{"type":"state_update","muted":true}`},
		{name: "start screen share", raw: `{"type":"start_screen_share"}`},
		{name: "stop screen share", raw: `{"type":"stop_screen_share"}`},
		{name: "get participants", raw: `{"type":"get_participants"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := newTestConn()
			done := dispatchRaw(t, ctl, cc, tt.raw)
			assert.False(t, done)
			got := takeFrame(t, cc)
			assert.Equal(t, "error", got["type"])
			assert.Equal(t, float64(protocol.CodeOutOfSequence), got["code"])
		})
	}
}

func TestPingWorksAnytime(t *testing.T) {
	ctl := newTestController(10)
	cc := newTestConn()

	dispatchRaw(t, ctl, cc, `{"type":"ping"}`)
	got := takeFrame(t, cc)
	assert.Equal(t, "pong", got["type"])
}

func TestJoinAndRoster(t *testing.T) {
	ctl := newTestController(10)

	alice := newTestConn()
	done := dispatchRaw(t, ctl, alice, `{"type":"join","room":"r1","participant":"alice","name":"Alice"}`)
	require.False(t, done)
	got := takeFrame(t, alice)
	assert.Equal(t, "joined", got["type"])
	assert.Equal(t, "alice", got["your_id"])
	assert.Empty(t, got["participants"])

	bob := newTestConn()
	dispatchRaw(t, ctl, bob, `{"type":"join","room":"r1","participant":"bob","name":"Bob"}`)
	got = takeFrame(t, bob)
	assert.Equal(t, "joined", got["type"])
	roster, ok := got["participants"].([]any)
	require.True(t, ok)
	require.Len(t, roster, 1)

	// Alice hears about bob.
	got = takeFrame(t, alice)
	assert.Equal(t, "participant_joined", got["type"])
	assert.Equal(t, "bob", got["id"])
	assert.Equal(t, "Bob", got["name"])
}

func TestJoinAssignsServerID(t *testing.T) {
	ctl := newTestController(10)
	cc := newTestConn()

	dispatchRaw(t, ctl, cc, `{"type":"join","room":"r1","name":"Anon"}`)
	got := takeFrame(t, cc)
	require.Equal(t, "joined", got["type"])
	assert.NotEmpty(t, got["your_id"], "omitted participant id is generated server-side")
}

func TestJoinTwiceRejected(t *testing.T) {
	ctl := newTestController(10)
	cc := joinRoom(t, ctl, "r1", "alice", "Alice")

	done := dispatchRaw(t, ctl, cc, `{"type":"join","room":"r2","participant":"alice2","name":"A"}`)
	assert.False(t, done)
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeOutOfSequence), got["code"])
}

func TestJoinEmptyRoom(t *testing.T) {
	ctl := newTestController(10)
	cc := newTestConn()

	dispatchRaw(t, ctl, cc, `{"type":"join","room":"","participant":"alice","name":"A"}`)
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeBadPayload), got["code"])
}

func TestJoinRoomFullIsFatal(t *testing.T) {
	ctl := newTestController(1)
	joinRoom(t, ctl, "r1", "alice", "Alice")

	cc := newTestConn()
	done := dispatchRaw(t, ctl, cc, `{"type":"join","room":"r1","participant":"bob","name":"Bob"}`)
	assert.True(t, done, "full room rejects and closes")
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeRoomFull), got["code"])
}

func TestJoinDuplicateIDIsFatal(t *testing.T) {
	ctl := newTestController(10)
	joinRoom(t, ctl, "r1", "alice", "Alice")

	cc := newTestConn()
	done := dispatchRaw(t, ctl, cc, `{"type":"join","room":"r1","participant":"alice","name":"Other"}`)
	assert.True(t, done)
	got := takeFrame(t, cc)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeDuplicateID), got["code"])
}

func TestStateUpdateBroadcast(t *testing.T) {
	ctl := newTestController(10)
	alice := joinRoom(t, ctl, "r1", "alice", "Alice")
	bob := joinRoom(t, ctl, "r1", "bob", "Bob")
	takeFrame(t, alice) // participant_joined for bob

	dispatchRaw(t, ctl, alice, `{"type":"state_update","muted":true,"video_on":false,"screen_sharing":false}`)

	assertNoFrame(t, alice)
	got := takeFrame(t, bob)
	assert.Equal(t, "state_update", got["type"])
	assert.Equal(t, "alice", got["participant_id"])
	assert.Equal(t, true, got["muted"])
	assert.Equal(t, false, got["video_on"])
}

func TestScreenShareFlow(t *testing.T) {
	ctl := newTestController(10)
	alice := joinRoom(t, ctl, "r1", "alice", "Alice")
	bob := joinRoom(t, ctl, "r1", "bob", "Bob")
	takeFrame(t, alice)

	dispatchRaw(t, ctl, alice, `{"type":"start_screen_share"}`)
	got := takeFrame(t, bob)
	assert.Equal(t, "screen_share_started", got["type"])
	assert.Equal(t, "alice", got["participant_id"])

	// Second sharer is rejected while alice holds the slot.
	dispatchRaw(t, ctl, bob, `{"type":"start_screen_share"}`)
	got = takeFrame(t, bob)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, float64(protocol.CodeScreenShareBusy), got["code"])
	assertNoFrame(t, alice)

	dispatchRaw(t, ctl, alice, `{"type":"stop_screen_share"}`)
	got = takeFrame(t, bob)
	assert.Equal(t, "screen_share_stopped", got["type"])

	// Slot freed; bob can now share.
	dispatchRaw(t, ctl, bob, `{"type":"start_screen_share"}`)
	got = takeFrame(t, alice)
	assert.Equal(t, "screen_share_started", got["type"])
	assert.Equal(t, "bob", got["participant_id"])
}

func TestGetParticipants(t *testing.T) {
	ctl := newTestController(10)
	alice := joinRoom(t, ctl, "r1", "alice", "Alice")
	joinRoom(t, ctl, "r1", "bob", "Bob")
	takeFrame(t, alice)

	dispatchRaw(t, ctl, alice, `{"type":"get_participants"}`)
	got := takeFrame(t, alice)
	require.Equal(t, "participants", got["type"])
	roster, ok := got["participants"].([]any)
	require.True(t, ok)
	assert.Len(t, roster, 2, "full roster includes the requester")
}

func TestTeardownBroadcastsLeave(t *testing.T) {
	ctl := newTestController(10)
	alice := joinRoom(t, ctl, "r1", "alice", "Alice")
	bob := joinRoom(t, ctl, "r1", "bob", "Bob")
	takeFrame(t, alice)

	ctl.teardown(bob)
	got := takeFrame(t, alice)
	assert.Equal(t, "participant_left", got["type"])
	assert.Equal(t, "bob", got["participant_id"])
	assert.Equal(t, core.StateClosed, bob.sess.State())
	assert.Equal(t, 1, bob.room.Len())

	// Teardown twice stays quiet.
	ctl.teardown(bob)
	assertNoFrame(t, alice)
}
