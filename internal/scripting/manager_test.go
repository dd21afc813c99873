package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
	"github.com/cory-johannsen/roomlink/internal/scripting"
)

type recordingBot struct {
	mu    sync.Mutex
	calls []string
	seen  chan struct{}
}

func newRecordingBot() *recordingBot {
	return &recordingBot{seen: make(chan struct{}, 16)}
}

func (b *recordingBot) record(s string) error {
	b.mu.Lock()
	b.calls = append(b.calls, s)
	b.mu.Unlock()
	b.seen <- struct{}{}
	return nil
}

func (b *recordingBot) Say(_ context.Context, msg string) error { return b.record("say:" + msg) }
func (b *recordingBot) Whisper(_ context.Context, id, msg string) error {
	return b.record("whisper:" + id + ":" + msg)
}
func (b *recordingBot) Emote(_ context.Context, emote, target string) error {
	return b.record("emote:" + emote + ":" + target)
}

func (b *recordingBot) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-b.seen:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d script actions ran", i, n)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func newTestEngine(t *testing.T, bot scripting.Bot, limit int) (*scripting.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	e := scripting.NewEngine(bot, limit, zap.New(core))
	t.Cleanup(e.Close)
	return e, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0o644))
	return dir
}

func TestEngine_LoadDir_CallsHook(t *testing.T) {
	e, _ := newTestEngine(t, nil, 0)
	dir := writeTempLua(t, "hooks.lua", `
		function add(a, b)
			return a + b
		end
	`)
	require.NoError(t, e.LoadDir(dir))
	assert.Equal(t, lua.LNumber(7), e.CallHook("add", lua.LNumber(3), lua.LNumber(4)))
}

func TestEngine_LoadDir_OrderAndErrors(t *testing.T) {
	e, _ := newTestEngine(t, nil, 0)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`greeting = "hi"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`function greet() return greeting end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))
	require.NoError(t, e.LoadDir(dir))
	assert.Equal(t, lua.LString("hi"), e.CallHook("greet"))

	bad := writeTempLua(t, "broken.lua", `function (`)
	err := e.LoadDir(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.lua")

	assert.Error(t, e.LoadDir(filepath.Join(dir, "missing")))
}

func TestEngine_MissingHookIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, nil, 0)
	assert.False(t, e.HasHook("on_chat"))
	assert.Equal(t, lua.LNil, e.CallHook("on_chat"))
}

func TestEngine_RuntimeErrorLoggedNotPropagated(t *testing.T) {
	e, logs := newTestEngine(t, nil, 0)
	require.NoError(t, e.LoadString(`function on_join() error("boom") end`))

	assert.Equal(t, lua.LNil, e.CallHook(scripting.HookJoin))
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestEngine_RunawayHookIsStoppedAndEngineRecovers(t *testing.T) {
	e, logs := newTestEngine(t, nil, 200)
	require.NoError(t, e.LoadString(`
		function spin() while true do end end
		function ok() return 1 end
	`))

	assert.Equal(t, lua.LNil, e.CallHook("spin"))
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
	assert.Equal(t, lua.LNumber(1), e.CallHook("ok"))
}

func TestEngine_BotTable(t *testing.T) {
	bot := newRecordingBot()
	e, logs := newTestEngine(t, bot, 0)
	require.NoError(t, e.LoadString(`
		function act()
			bot.say("hello")
			bot.whisper("u1", "secret")
			bot.emote("emote-wave")
			bot.log("done")
		end
	`))

	e.CallHook("act")
	calls := bot.wait(t, 3)
	assert.Equal(t, []string{"say:hello", "whisper:u1:secret", "emote:emote-wave:"}, calls)
	assert.Equal(t, 1, logs.FilterMessage("script").Len())
}

// slowBot takes longer on early calls so that concurrent execution would
// reorder them.
type slowBot struct {
	*recordingBot
	n int
}

func (b *slowBot) Say(ctx context.Context, msg string) error {
	b.mu.Lock()
	b.n++
	delay := time.Duration(12-b.n) * time.Millisecond
	b.mu.Unlock()
	time.Sleep(delay)
	return b.recordingBot.Say(ctx, msg)
}

func TestEngine_ActionsRunInIssueOrder(t *testing.T) {
	bot := &slowBot{recordingBot: newRecordingBot()}
	e, _ := newTestEngine(t, bot, 0)
	require.NoError(t, e.LoadString(`
		function chatter()
			for i = 1, 10 do bot.say(tostring(i)) end
		end
	`))

	e.CallHook("chatter")
	calls := bot.wait(t, 10)
	want := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		want = append(want, "say:"+strconv.Itoa(i))
	}
	assert.Equal(t, want, calls)
}

func TestEngine_CloseRunsQueuedActions(t *testing.T) {
	bot := newRecordingBot()
	core, logs := observer.New(zapcore.DebugLevel)
	e := scripting.NewEngine(bot, 0, zap.New(core))
	require.NoError(t, e.LoadString(`
		function act()
			bot.say("a")
			bot.say("b")
		end
	`))

	e.CallHook("act")
	e.Close()
	bot.mu.Lock()
	assert.Equal(t, []string{"say:a", "say:b"}, bot.calls)
	bot.mu.Unlock()

	e.Close()
	assert.Zero(t, logs.FilterMessage("script action failed").Len())
}

func TestEngine_BindRoutesEventsToHooks(t *testing.T) {
	bot := newRecordingBot()
	e, _ := newTestEngine(t, bot, 0)
	require.NoError(t, e.LoadString(`
		function on_chat(id, name, msg)
			if msg == "!hi" then bot.say("hi " .. name) end
		end
		function on_join(id, name) bot.whisper(id, "welcome " .. name) end
		function on_tip(sender, receiver, amount, kind)
			bot.say("thanks for " .. amount .. " " .. kind)
		end
	`))

	d := gateway.NewDispatcher(protocol.AllIntents, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	unbind := e.Bind(d)
	assert.Equal(t, 1, d.Subscribers(protocol.EventChat))
	assert.Equal(t, 0, d.Subscribers(protocol.EventLeave), "no on_leave hook defined")

	d.Publish([]byte(`{"_type":"ChatEvent","user":{"id":"u1","username":"alice"},"message":"!hi","whisper":false}`))
	d.Publish([]byte(`{"_type":"UserJoinedEvent","user":{"id":"u2","username":"bob"},"position":{"x":0,"y":0,"z":0}}`))
	d.Publish([]byte(`{"_type":"TipReactionEvent","sender":{"id":"u2","username":"bob"},"receiver":{"id":"bot","username":"bot"},"item":{"type":"gold","amount":10}}`))

	calls := bot.wait(t, 3)
	assert.ElementsMatch(t, []string{"say:hi alice", "whisper:u2:welcome bob", "say:thanks for 10 gold"}, calls)

	unbind()
	assert.Equal(t, 0, d.Subscribers(protocol.EventChat))
}
