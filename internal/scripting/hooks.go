package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// Hook names a script may define.
const (
	HookReady   = "on_ready"
	HookChat    = "on_chat"
	HookWhisper = "on_whisper"
	HookJoin    = "on_join"
	HookLeave   = "on_leave"
	HookTip     = "on_tip"
)

// Source delivers events to subscribers.
type Source interface {
	Subscribe(event string, h gateway.Handler) *gateway.Subscription
	Unsubscribe(s *gateway.Subscription)
}

// Bind subscribes the engine's hooks to source. Only hooks the loaded scripts
// define are subscribed. The returned function removes the subscriptions.
func (e *Engine) Bind(source Source) (unbind func()) {
	bindings := map[string]struct {
		hook string
		args func(protocol.Event) []lua.LValue
	}{
		protocol.EventReady: {HookReady, func(ev protocol.Event) []lua.LValue {
			return []lua.LValue{lua.LString(ev.Actor())}
		}},
		protocol.EventChat:    {HookChat, chatArgs},
		protocol.EventWhisper: {HookWhisper, chatArgs},
		protocol.EventJoin: {HookJoin, func(ev protocol.Event) []lua.LValue {
			j := ev.(*protocol.UserJoinedEvent)
			return []lua.LValue{lua.LString(j.User.ID), lua.LString(j.User.Username)}
		}},
		protocol.EventLeave: {HookLeave, func(ev protocol.Event) []lua.LValue {
			l := ev.(*protocol.UserLeftEvent)
			return []lua.LValue{lua.LString(l.User.ID), lua.LString(l.User.Username)}
		}},
		protocol.EventTip: {HookTip, func(ev protocol.Event) []lua.LValue {
			tip := ev.(*protocol.TipReactionEvent)
			return []lua.LValue{
				lua.LString(tip.Sender.ID),
				lua.LString(tip.Receiver.ID),
				lua.LNumber(tip.Item.Amount),
				lua.LString(tip.Item.Type),
			}
		}},
	}

	var subs []*gateway.Subscription
	for event, b := range bindings {
		if !e.HasHook(b.hook) {
			continue
		}
		subs = append(subs, source.Subscribe(event, func(ev protocol.Event) {
			e.CallHook(b.hook, b.args(ev)...)
		}))
	}
	return func() {
		for _, s := range subs {
			source.Unsubscribe(s)
		}
	}
}

func chatArgs(ev protocol.Event) []lua.LValue {
	c := ev.(*protocol.ChatEvent)
	return []lua.LValue{lua.LString(c.User.ID), lua.LString(c.User.Username), lua.LString(string(c.Message))}
}
