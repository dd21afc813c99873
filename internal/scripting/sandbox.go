// Package scripting runs user behaviour scripts in a sandboxed GopherLua VM.
// It knows nothing about the gateway beyond the event types; every room
// interaction is injected through the Bot interface.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget for one script call when no
// limit is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit times.
// GopherLua's mainLoopWithContext calls Done() once per opcode, making this
// an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newCountingContext returns a context that cancels after limit calls to Done().
// Precondition: limit > 0.
func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{Context: base, cancel: cancel, remaining: rem}, cancel
}

// NewSandboxedState creates a GopherLua LState with only the base, table,
// string and math libraries, and without dofile, loadfile, load,
// collectgarbage or require.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// withBudget runs fn with at most limit opcodes available to L.
//
// Precondition: limit > 0; L is not used concurrently.
func withBudget(L *lua.LState, limit int, fn func() error) error {
	ctx, cancel := newCountingContext(limit)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()
	return fn()
}
