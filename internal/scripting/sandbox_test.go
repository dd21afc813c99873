package scripting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L := NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L := NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L := NewSandboxedState()
	defer L.Close()
	err := L.DoString(`
		local x = math.sqrt(4)
		assert(x == 2.0, "math.sqrt failed")
		local s = string.upper("hello")
		assert(s == "HELLO", "string.upper failed")
		local t = {}
		table.insert(t, 1)
		assert(#t == 1, "table.insert failed")
	`)
	assert.NoError(t, err)
}

func TestWithBudget_ResetsPerCall(t *testing.T) {
	L := NewSandboxedState()
	defer L.Close()

	require.Error(t, withBudget(L, 10, func() error { return L.DoString(`while true do end`) }))
	assert.NoError(t, withBudget(L, 1000, func() error { return L.DoString(`local x = 1 + 1`) }))
	assert.NoError(t, withBudget(L, 1000, func() error { return L.DoString(`local y = 2 * 2`) }))
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(rt, "limit")
		L := NewSandboxedState()
		defer L.Close()
		if err := withBudget(L, limit, func() error { return L.DoString(`while true do end`) }); err == nil {
			rt.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}
