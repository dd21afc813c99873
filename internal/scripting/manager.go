package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine owns one sandboxed LState holding every behaviour script.
//
// The LState is single-threaded; CallHook serializes on a mutex. Each call
// gets a fresh instruction budget. Room actions issued by scripts are run by
// one worker goroutine in issue order.
type Engine struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	bot    Bot
	logger *zap.Logger
	closed bool

	queue   chan scriptAction
	drained chan struct{}
}

// NewEngine creates an Engine whose scripts act through bot. A nil bot makes
// script actions no-ops.
//
// Precondition: logger must be non-nil; instLimit <= 0 uses DefaultInstructionLimit.
// Postcondition: Returns an Engine with the bot table registered and no scripts loaded.
func NewEngine(bot Bot, instLimit int, logger *zap.Logger) *Engine {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	e := &Engine{
		L:       NewSandboxedState(),
		limit:   instLimit,
		bot:     bot,
		logger:  logger,
		queue:   make(chan scriptAction, actionQueueSize),
		drained: make(chan struct{}),
	}
	e.registerModules(e.L)
	go e.runActions()
	return e
}

// LoadDir executes every *.lua file in dir in lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error naming the first file that fails to load;
// files before it stay loaded.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, ent := range entries {
		if !ent.IsDir() && filepath.Ext(ent.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, ent.Name()))
		}
	}
	sort.Strings(luaFiles)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, path := range luaFiles {
		if err := withBudget(e.L, e.limit, func() error { return e.L.DoFile(path) }); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
		e.logger.Info("script loaded", zap.String("path", path))
	}
	return nil
}

// LoadString executes src as a script chunk.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := withBudget(e.L, e.limit, func() error { return e.L.DoString(src) }); err != nil {
		return fmt.Errorf("scripting: loading chunk: %w", err)
	}
	return nil
}

// HasHook reports whether a global function named hook is defined.
func (e *Engine) HasHook(hook string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.L.GetGlobal(hook).Type() == lua.LTFunction
}

// CallHook calls the named Lua global function. It returns LNil when the hook
// is not defined. Lua runtime errors, including an exhausted instruction
// budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (e *Engine) CallHook(hook string, args ...lua.LValue) lua.LValue {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil
	}

	err := withBudget(e.L, e.limit, func() error {
		return e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		e.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		e.L.SetTop(0)
		return lua.LNil
	}

	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret
}

// Close runs the queued script actions to completion and releases the VM.
// It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.drained

	e.mu.Lock()
	defer e.mu.Unlock()
	e.L.Close()
}
