package scripting

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const (
	// actionTimeout bounds each room action started from a script.
	actionTimeout = 10 * time.Second
	// actionQueueSize is the number of script actions waiting for the worker.
	actionQueueSize = 256
)

// Bot is the set of room actions exposed to scripts.
type Bot interface {
	Say(ctx context.Context, message string) error
	Whisper(ctx context.Context, userID, message string) error
	Emote(ctx context.Context, emoteID, targetUserID string) error
}

// registerModules defines the bot global table in L.
//
// Precondition: L must be from NewSandboxedState.
func (e *Engine) registerModules(L *lua.LState) {
	bot := L.NewTable()
	L.SetField(bot, "say", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		e.async("say", func(ctx context.Context) error { return e.bot.Say(ctx, msg) })
		return 0
	}))
	L.SetField(bot, "whisper", L.NewFunction(func(L *lua.LState) int {
		userID, msg := L.CheckString(1), L.CheckString(2)
		e.async("whisper", func(ctx context.Context) error { return e.bot.Whisper(ctx, userID, msg) })
		return 0
	}))
	L.SetField(bot, "emote", L.NewFunction(func(L *lua.LState) int {
		emoteID, target := L.CheckString(1), L.OptString(2, "")
		e.async("emote", func(ctx context.Context) error { return e.bot.Emote(ctx, emoteID, target) })
		return 0
	}))
	L.SetField(bot, "log", L.NewFunction(func(L *lua.LState) int {
		e.logger.Info("script", zap.String("message", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("bot", bot)
}

// scriptAction is one room action queued by a script.
type scriptAction struct {
	name string
	fn   func(ctx context.Context) error
}

// async queues a room action for the engine's action worker. Actions run one
// at a time in the order scripts issued them; a script never waits on the
// network. When the queue is full the action is dropped.
//
// Precondition: e.mu is held.
func (e *Engine) async(action string, fn func(ctx context.Context) error) {
	if e.bot == nil {
		e.logger.Debug("script action ignored, no bot bound", zap.String("action", action))
		return
	}
	if e.closed {
		e.logger.Debug("script action ignored, engine closed", zap.String("action", action))
		return
	}
	select {
	case e.queue <- scriptAction{name: action, fn: fn}:
	default:
		e.logger.Warn("script action queue full, dropping action", zap.String("action", action))
	}
}

// runActions drains the action queue until Close closes it.
func (e *Engine) runActions() {
	defer close(e.drained)
	for a := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		if err := a.fn(ctx); err != nil {
			e.logger.Warn("script action failed", zap.String("action", a.name), zap.Error(err))
		}
		cancel()
	}
}
