// Package script loads behavior modules authored as Lua files plus a YAML
// manifest. Each module runs in its own sandboxed GopherLua VM; at load time
// the VM's globals are scanned once to build the explicit typed handler
// tables handed to the engine core. The core itself never inspects names.
package script

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps the Lua opcodes a module VM may execute when
// the configuration does not override it.
const DefaultInstructionLimit = 100_000

// opcodeBudget is a context.Context whose Done() is invoked by GopherLua
// once per opcode; it cancels itself when the budget runs out, which stops
// the VM at the next opcode boundary.
type opcodeBudget struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (b *opcodeBudget) Done() <-chan struct{} {
	if b.remaining.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

func newOpcodeBudget(limit int) context.Context {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &opcodeBudget{Context: base, cancel: cancel, remaining: rem}
}

// newSandboxedState creates a GopherLua state restricted to the safe
// standard libraries (base, table, string, math), with the escape hatches
// dofile/loadfile/load/collectgarbage/require removed and execution capped
// at instLimit opcodes.
//
// Precondition: instLimit >= 0; 0 applies DefaultInstructionLimit.
// Postcondition: caller owns the state and must Close it.
func newSandboxedState(instLimit int) *lua.LState {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetContext(newOpcodeBudget(limit))
	return L
}
