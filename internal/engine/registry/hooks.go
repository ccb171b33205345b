package registry

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Naming prefixes tying a hook identifier to its invocation kind.
const (
	PrefixTurnPhase    = "turn_"
	PrefixEntityScoped = "on_"
)

// Kind is a hook's invocation kind.
type Kind int

const (
	// KindTurnPhase hooks fire once globally per turn, in scheduled order.
	KindTurnPhase Kind = iota
	// KindEntityScoped hooks fire per specific entity and event.
	KindEntityScoped
)

// String returns the manifest spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindTurnPhase:
		return "turn_phase"
	case KindEntityScoped:
		return "entity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindFromInvocation parses a manifest invocation string.
func KindFromInvocation(s string) (Kind, error) {
	switch s {
	case "turn_phase":
		return KindTurnPhase, nil
	case "entity":
		return KindEntityScoped, nil
	default:
		return 0, fmt.Errorf("invocation must be \"turn_phase\" or \"entity\", got %q", s)
	}
}

// prefixFor returns the identifier prefix the kind requires.
func prefixFor(k Kind) string {
	if k == KindTurnPhase {
		return PrefixTurnPhase
	}
	return PrefixEntityScoped
}

// HookDef is one stored hook definition. After and Before are kept verbatim
// (never nil); they only constrain scheduling for turn-phase hooks.
type HookDef struct {
	ID          string
	Kind        Kind
	After       []string
	Before      []string
	Description string
	Module      string
}

// Hooks stores hook definitions and remembers every (id, kind) declaration
// so finalize can detect an identifier declared with two different kinds.
type Hooks struct {
	defs     map[string]*HookDef
	order    []string
	declared map[string]map[Kind]bool
	logger   *zap.Logger
}

// NewHooks returns an empty hook-definition registry.
//
// Precondition: logger must be non-nil.
func NewHooks(logger *zap.Logger) *Hooks {
	return &Hooks{
		defs:     make(map[string]*HookDef),
		declared: make(map[string]map[Kind]bool),
		logger:   logger,
	}
}

// Register stores def. The identifier's prefix must match its kind.
// Re-registration by the defining module keeps the first definition;
// registration of an existing identifier by a different module is an error
// listing both definers.
//
// Precondition: def.ID and def.Module must be non-empty.
func (h *Hooks) Register(def HookDef) error {
	if err := checkHookNaming(def.ID, def.Kind); err != nil {
		return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID), "%s", err.Error())
	}

	if h.declared[def.ID] == nil {
		h.declared[def.ID] = make(map[Kind]bool)
	}
	h.declared[def.ID][def.Kind] = true

	if existing, ok := h.defs[def.ID]; ok {
		if existing.Module == def.Module {
			h.logger.Debug("hooks: duplicate registration by defining module ignored",
				zap.String("hook", def.ID),
				zap.String("module", def.Module),
			)
			return nil
		}
		return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID),
			"already defined by module %q; duplicate definition by %q", existing.Module, def.Module)
	}

	stored := def
	stored.After = append([]string{}, def.After...)
	stored.Before = append([]string{}, def.Before...)
	h.defs[def.ID] = &stored
	h.order = append(h.order, def.ID)
	return nil
}

// checkHookNaming verifies the identifier prefix matches the kind.
func checkHookNaming(id string, kind Kind) error {
	want := prefixFor(kind)
	if !strings.HasPrefix(id, want) {
		return fmt.Errorf("%s hooks must use the %q prefix", kind, want)
	}
	// An on_* identifier also begins with neither prefix reserved for the
	// other kind, so the single positive check suffices: turn_ and on_ are
	// mutually exclusive prefixes.
	return nil
}

// Get returns the stored definition for id, or (nil, false).
func (h *Hooks) Get(id string) (*HookDef, bool) {
	def, ok := h.defs[id]
	return def, ok
}

// All returns every stored definition in registration order.
func (h *Hooks) All() []*HookDef {
	out := make([]*HookDef, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.defs[id])
	}
	return out
}

// TurnPhase returns the stored turn-phase definitions in registration order.
func (h *Hooks) TurnPhase() []*HookDef {
	var out []*HookDef
	for _, id := range h.order {
		if h.defs[id].Kind == KindTurnPhase {
			out = append(out, h.defs[id])
		}
	}
	return out
}

// IDs returns every stored hook identifier in registration order.
func (h *Hooks) IDs() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// declaredKinds returns the distinct kinds id was ever declared with.
func (h *Hooks) declaredKinds(id string) []Kind {
	var out []Kind
	for _, k := range []Kind{KindTurnPhase, KindEntityScoped} {
		if h.declared[id][k] {
			out = append(out, k)
		}
	}
	return out
}
