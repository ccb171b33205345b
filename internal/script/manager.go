package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine"
	"github.com/cory-johannsen/fabula/internal/engine/behavior"
	"github.com/cory-johannsen/fabula/internal/engine/dispatch"
	"github.com/cory-johannsen/fabula/internal/engine/module"
	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// Export prefixes a Lua module uses to mark handler functions. cmd_take
// handles the verb "take"; handle_on_take implements the on_take event.
const (
	CommandPrefix = "cmd_"
	EventPrefix   = "handle_"
)

// manifestName is the per-module contribution manifest. It is optional: a
// module may contribute handlers only.
const manifestName = "manifest.yaml"

// Module is one loaded behavior module: its parsed manifest plus the typed
// handler tables built from its Lua globals.
type Module struct {
	ID           string
	Contribution module.Contribution
	Handlers     engine.Handlers

	state  *lua.LState
	logger *zap.Logger
}

// Close releases the module's Lua VM.
func (m *Module) Close() {
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}

// Manager owns the Lua VMs of every loaded module so they can be released
// together on shutdown or reload.
type Manager struct {
	modules []*Module
	logger  *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Load reads moduleID's manifest and Lua sources from dir, executes the
// sources in a fresh sandboxed VM in lexicographic order, then scans the
// VM's globals once for cmd_* and handle_* functions to build the typed
// handler tables.
//
// Precondition: dir must be a readable directory; moduleID non-empty.
// Postcondition: returns a loaded Module or an error; on error no VM leaks.
func (mgr *Manager) Load(dir, moduleID string, instLimit int) (*Module, error) {
	contrib, err := loadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("script: module %q: %w", moduleID, err)
	}

	L := newSandboxedState(instLimit)

	entries, err := os.ReadDir(dir)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("script: reading module dir %q: %w", dir, err)
	}
	var sources []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			sources = append(sources, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(sources)

	for _, path := range sources {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return nil, fmt.Errorf("script: module %q: loading %q: %w", moduleID, path, err)
		}
	}

	m := &Module{
		ID:           moduleID,
		Contribution: contrib,
		Handlers: engine.Handlers{
			Commands: make(map[string]dispatch.Handler),
			Events:   make(map[string]behavior.Handler),
		},
		state:  L,
		logger: mgr.logger,
	}
	m.bindExports()

	mgr.modules = append(mgr.modules, m)
	mgr.logger.Debug("script: module loaded",
		zap.String("module", moduleID),
		zap.Int("lua_files", len(sources)),
		zap.Int("commands", len(m.Handlers.Commands)),
		zap.Int("events", len(m.Handlers.Events)),
	)
	return m, nil
}

// Close releases every loaded module's VM.
func (mgr *Manager) Close() {
	for _, m := range mgr.modules {
		m.Close()
	}
	mgr.modules = nil
}

func loadManifest(dir string) (module.Contribution, error) {
	path := filepath.Join(dir, manifestName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return module.Contribution{}, nil
	}
	return module.LoadManifest(path)
}

// bindExports scans the VM globals once and wraps every prefixed function
// export in a typed handler closure. This is the only place names are
// inspected; the engine receives an explicit table.
func (m *Module) bindExports() {
	m.state.G.Global.ForEach(func(key, value lua.LValue) {
		name, okName := key.(lua.LString)
		fn, okFn := value.(*lua.LFunction)
		if !okName || !okFn {
			return
		}
		switch {
		case strings.HasPrefix(string(name), CommandPrefix):
			verb := strings.TrimPrefix(string(name), CommandPrefix)
			if verb != "" {
				m.Handlers.Commands[verb] = m.commandHandler(fn, verb)
			}
		case strings.HasPrefix(string(name), EventPrefix):
			event := strings.TrimPrefix(string(name), EventPrefix)
			if event != "" {
				m.Handlers.Events[event] = m.eventHandler(fn, event)
			}
		}
	})
}

// commandHandler wraps a Lua function as a dispatch.Handler. The function
// receives one argument table and returns {ok=bool, message=string}. A Lua
// runtime error is the module's own fault: it is logged at Warn and reported
// as a message-less failure so lower tiers get their chance.
func (m *Module) commandHandler(fn *lua.LFunction, verb string) dispatch.Handler {
	return func(ctx *world.Context) dispatch.Result {
		ret, err := m.call(fn, m.contextTable(ctx, nil))
		if err != nil {
			m.logger.Warn("script: command handler failed",
				zap.String("module", m.ID),
				zap.String("verb", verb),
				zap.Error(err),
			)
			return dispatch.Result{}
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return dispatch.Result{}
		}
		return dispatch.Result{
			OK:      lua.LVAsBool(tbl.RawGetString("ok")),
			Message: lua.LVAsString(tbl.RawGetString("message")),
		}
	}
}

// eventHandler wraps a Lua function as a behavior.Handler. The function
// returns {allow=bool, feedback=string, ignore=bool}; a nil return means an
// implicit allow with no feedback. Runtime errors propagate to the
// invocation engine, which isolates them from sibling modules.
func (m *Module) eventHandler(fn *lua.LFunction, event string) behavior.Handler {
	return func(entity *world.Entity, ctx *world.Context) (behavior.Response, error) {
		ret, err := m.call(fn, m.contextTable(ctx, entity))
		if err != nil {
			return behavior.Response{}, fmt.Errorf("event %q: %w", event, err)
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return behavior.Response{Allow: true}, nil
		}
		allow := true
		if v := tbl.RawGetString("allow"); v != lua.LNil {
			allow = lua.LVAsBool(v)
		}
		return behavior.Response{
			Allow:    allow,
			Feedback: lua.LVAsString(tbl.RawGetString("feedback")),
			Ignored:  lua.LVAsBool(tbl.RawGetString("ignore")),
		}, nil
	}
}

func (m *Module) call(fn *lua.LFunction, arg lua.LValue) (lua.LValue, error) {
	if err := m.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		return lua.LNil, err
	}
	ret := m.state.Get(-1)
	m.state.Pop(1)
	return ret, nil
}

// contextTable builds the single argument table handlers receive: the
// invocation id, turn number, raw input, args list, and a snapshot of the
// target entity when one is in play.
func (m *Module) contextTable(ctx *world.Context, entity *world.Entity) *lua.LTable {
	L := m.state
	t := L.NewTable()
	t.RawSetString("invocation", lua.LString(ctx.InvocationID))
	t.RawSetString("turn", lua.LNumber(ctx.Turn()))
	t.RawSetString("input", lua.LString(ctx.Input))

	args := L.NewTable()
	for _, a := range ctx.Args {
		args.Append(lua.LString(a))
	}
	t.RawSetString("args", args)

	if ctx.Actor != nil {
		t.RawSetString("actor", entityTable(L, ctx.Actor))
	}
	if entity != nil {
		t.RawSetString("entity", entityTable(L, entity))
	}
	return t
}

// entityTable snapshots an entity for Lua: id, name, behavior list, and the
// property bag (scalar values only; anything else is skipped).
func entityTable(L *lua.LState, e *world.Entity) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(e.ID))
	t.RawSetString("name", lua.LString(e.Name))

	behaviors := L.NewTable()
	for _, b := range e.Behaviors {
		behaviors.Append(lua.LString(b))
	}
	t.RawSetString("behaviors", behaviors)

	props := L.NewTable()
	for k, v := range e.Props {
		if lv := scalarToLua(v); lv != lua.LNil {
			props.RawSetString(k, lv)
		}
	}
	t.RawSetString("props", props)
	return t
}

func scalarToLua(v any) lua.LValue {
	switch x := v.(type) {
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	default:
		return lua.LNil
	}
}
