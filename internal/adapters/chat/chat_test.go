package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/app"
	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/domain"
	"huddle/internal/store/memstore"
)

// testRig wires the controller against the in-memory store. Connections
// are WsChatConn values with a buffered queue and no underlying socket;
// handleCommand and TrySend never touch the ws.Conn.
type testRig struct {
	ctl *ChatWSController
	st  *memstore.Mem
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	st := memstore.New()
	registry := app.NewRegistry()
	notifier := app.NewNotifier(registry)
	messaging := app.NewMessaging(st, notifier, 20, 200)
	ctl := &ChatWSController{
		Cfg:        &config.Config{SendBuffer: 64, WriteTimeout: time.Second},
		Auth:       auth.NewService(st),
		Store:      st,
		Registry:   registry,
		Moderation: app.NewModeration(st, notifier, messaging, 3),
		Messaging:  messaging,
		Presence:   app.NewPresence(st, notifier),
		Reaper:     app.NewReaper(st, notifier, 30*24*time.Hour),
	}
	return &testRig{ctl: ctl, st: st}
}

func (r *testRig) connect(t *testing.T, nickname string) (*auth.Principal, *WsChatConn) {
	t.Helper()
	u := &domain.User{
		Nickname:     nickname,
		Email:        fmt.Sprintf("%s@example.com", nickname),
		PasswordHash: "x",
		Status:       domain.StatusOnline,
	}
	require.NoError(t, r.st.CreateUser(context.Background(), u))
	p := &auth.Principal{ID: u.ID, Nickname: u.Nickname, Status: u.Status}
	c := &WsChatConn{send: make(chan []byte, 64)}
	r.ctl.Registry.Add(p.ID, c)
	return p, c
}

func (r *testRig) command(p *auth.Principal, c *WsChatConn, frame string) {
	r.ctl.handleCommand(context.Background(), p, c, []byte(frame))
}

// drain empties the connection's outbound queue into decoded frames.
func drain(t *testing.T, c *WsChatConn) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-c.send:
			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			out = append(out, frame)
		default:
			return out
		}
	}
}

func framesOfType(frames []map[string]any, ftype string) []map[string]any {
	var out []map[string]any
	for _, f := range frames {
		if f["type"] == ftype {
			out = append(out, f)
		}
	}
	return out
}

func ackOf(t *testing.T, frames []map[string]any, seq int64) map[string]any {
	t.Helper()
	for _, f := range framesOfType(frames, "ack") {
		if int64(f["seq"].(float64)) == seq {
			return f
		}
	}
	t.Fatalf("no ack for seq %d in %v", seq, frames)
	return nil
}

func TestDispatchJoinAndSend(t *testing.T) {
	r := newTestRig(t)
	alice, aliceConn := r.connect(t, "alice")
	bob, bobConn := r.connect(t, "bob")

	r.command(alice, aliceConn, `{"type":"channel:join","seq":1,"name":"general"}`)
	frames := drain(t, aliceConn)
	ack := ackOf(t, frames, 1)
	assert.Equal(t, true, ack["ok"])
	data := ack["data"].(map[string]any)
	assert.Equal(t, "general", data["title"])
	assert.Equal(t, "alice", data["admin"])
	channelID := int64(data["id"].(float64))

	r.command(bob, bobConn, `{"type":"channel:join","seq":1,"name":"general"}`)
	ack = ackOf(t, drain(t, bobConn), 1)
	assert.Equal(t, true, ack["ok"])

	r.command(bob, bobConn, fmt.Sprintf(`{"type":"message:send","seq":2,"channelId":%d,"text":"hi @alice"}`, channelID))
	bobFrames := drain(t, bobConn)
	ack = ackOf(t, bobFrames, 2)
	assert.Equal(t, true, ack["ok"])

	// Both members got the broadcast; the sender's ack carries no body.
	pushes := framesOfType(drain(t, aliceConn), "message:new")
	var msg map[string]any
	for _, f := range pushes {
		m := f["data"].(map[string]any)
		if m["system"] == false {
			msg = m
		}
	}
	require.NotNil(t, msg)
	assert.Equal(t, "general", msg["chatId"])
	assert.Equal(t, "bob", msg["senderId"])
	assert.Equal(t, "hi @alice", msg["text"])
	assert.Equal(t, []any{"alice"}, msg["mentioned"])
	assert.NotEmpty(t, framesOfType(bobFrames, "message:new"))
}

func TestDispatchRepeatJoinNotice(t *testing.T) {
	r := newTestRig(t)
	alice, conn := r.connect(t, "alice")

	r.command(alice, conn, `{"type":"channel:join","seq":1,"name":"general"}`)
	drain(t, conn)
	r.command(alice, conn, `{"type":"channel:join","seq":2,"name":"general"}`)

	ack := ackOf(t, drain(t, conn), 2)
	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, "Already a member", ack["data"].(map[string]any)["notice"])
}

func TestDispatchErrorAck(t *testing.T) {
	r := newTestRig(t)
	alice, aliceConn := r.connect(t, "alice")
	bob, bobConn := r.connect(t, "bob")

	r.command(alice, aliceConn, `{"type":"channel:join","seq":1,"name":"secret","isPrivate":true}`)
	drain(t, aliceConn)

	r.command(bob, bobConn, `{"type":"channel:join","seq":5,"name":"secret"}`)
	ack := ackOf(t, drain(t, bobConn), 5)
	assert.Equal(t, false, ack["ok"])
	errObj := ack["error"].(map[string]any)
	assert.Equal(t, "PERMISSION_DENIED", errObj["code"])
	assert.Equal(t, "Cannot join a private channel without invite", errObj["message"])
}

func TestDispatchChannelList(t *testing.T) {
	r := newTestRig(t)
	alice, conn := r.connect(t, "alice")

	r.command(alice, conn, `{"type":"channel:join","seq":1,"name":"one"}`)
	r.command(alice, conn, `{"type":"channel:join","seq":2,"name":"two"}`)
	drain(t, conn)

	r.command(alice, conn, `{"type":"channel:list","seq":3}`)
	ack := ackOf(t, drain(t, conn), 3)
	require.Equal(t, true, ack["ok"])
	channels := ack["data"].([]any)
	assert.Len(t, channels, 2)
}

func TestDispatchHistory(t *testing.T) {
	r := newTestRig(t)
	alice, conn := r.connect(t, "alice")

	r.command(alice, conn, `{"type":"channel:join","seq":1,"name":"general"}`)
	ack := ackOf(t, drain(t, conn), 1)
	channelID := int64(ack["data"].(map[string]any)["id"].(float64))

	r.command(alice, conn, fmt.Sprintf(`{"type":"message:send","seq":2,"channelId":%d,"text":"first"}`, channelID))
	r.command(alice, conn, fmt.Sprintf(`{"type":"message:send","seq":3,"channelId":%d,"text":"second"}`, channelID))
	drain(t, conn)

	r.command(alice, conn, fmt.Sprintf(`{"type":"messages:history","seq":4,"channelId":%d}`, channelID))
	ack = ackOf(t, drain(t, conn), 4)
	require.Equal(t, true, ack["ok"])
	messages := ack["data"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].(map[string]any)["text"])
	assert.Equal(t, "second", messages[1].(map[string]any)["text"])
}

func TestDispatchKickAck(t *testing.T) {
	r := newTestRig(t)
	owner, ownerConn := r.connect(t, "owner")
	target, targetConn := r.connect(t, "target")
	voter, voterConn := r.connect(t, "voter")

	r.command(owner, ownerConn, `{"type":"channel:join","seq":1,"name":"arena"}`)
	ack := ackOf(t, drain(t, ownerConn), 1)
	channelID := int64(ack["data"].(map[string]any)["id"].(float64))
	r.command(target, targetConn, `{"type":"channel:join","seq":1,"name":"arena"}`)
	r.command(voter, voterConn, `{"type":"channel:join","seq":1,"name":"arena"}`)
	drain(t, voterConn)

	r.command(voter, voterConn, fmt.Sprintf(`{"type":"channel:kick","seq":2,"channelId":%d,"nickName":"target"}`, channelID))
	ack = ackOf(t, drain(t, voterConn), 2)
	require.Equal(t, true, ack["ok"])
	assert.Equal(t, float64(1), ack["data"].(map[string]any)["vote"])

	// The owner's kick bans outright, and the target learns via push.
	drain(t, targetConn)
	r.command(owner, ownerConn, fmt.Sprintf(`{"type":"channel:kick","seq":2,"channelId":%d,"nickName":"target"}`, channelID))
	ack = ackOf(t, drain(t, ownerConn), 2)
	require.Equal(t, true, ack["ok"])
	assert.Equal(t, true, ack["data"].(map[string]any)["banned"])

	removed := framesOfType(drain(t, targetConn), "channel:removed")
	require.Len(t, removed, 1)
	assert.Equal(t, "arena", removed[0]["data"].(map[string]any)["title"])
}

func TestDispatchPresencePassthrough(t *testing.T) {
	r := newTestRig(t)
	alice, aliceConn := r.connect(t, "alice")
	bob, bobConn := r.connect(t, "bob")

	r.command(alice, aliceConn, `{"type":"channel:join","seq":1,"name":"general"}`)
	ack := ackOf(t, drain(t, aliceConn), 1)
	channelID := int64(ack["data"].(map[string]any)["id"].(float64))
	r.command(bob, bobConn, `{"type":"channel:join","seq":1,"name":"general"}`)
	drain(t, aliceConn)
	drain(t, bobConn)

	r.command(bob, bobConn, fmt.Sprintf(`{"type":"typing","channelId":%d}`, channelID))
	typing := framesOfType(drain(t, aliceConn), "typing")
	require.Len(t, typing, 1)
	assert.Equal(t, "bob", typing[0]["data"].(map[string]any)["nickName"])

	r.command(bob, bobConn, fmt.Sprintf(`{"type":"draft:update","channelId":%d,"text":"typi"}`, channelID))
	drafts := framesOfType(drain(t, aliceConn), "draft:update")
	require.Len(t, drafts, 1)
	assert.Equal(t, "typi", drafts[0]["data"].(map[string]any)["text"])

	r.command(bob, bobConn, `{"type":"status:update","status":"dnd"}`)
	statuses := framesOfType(drain(t, aliceConn), "status:changed")
	require.Len(t, statuses, 1)
	assert.Equal(t, "dnd", statuses[0]["data"].(map[string]any)["status"])
}

func TestDispatchIgnoresGarbage(t *testing.T) {
	r := newTestRig(t)
	alice, conn := r.connect(t, "alice")

	r.command(alice, conn, `not json at all`)
	r.command(alice, conn, `{"type":"no:such:command","seq":9}`)
	assert.Empty(t, drain(t, conn))

	r.command(alice, conn, `{"type":"ping"}`)
	frames := drain(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, "pong", frames[0]["type"])
}

func TestTrySendBackpressure(t *testing.T) {
	c := &WsChatConn{send: make(chan []byte, 1)}
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)
}
