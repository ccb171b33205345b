package registry

import (
	"fmt"

	"go.uber.org/zap"
)

// EventInfo is the merged view of one event across every module that
// declared it.
type EventInfo struct {
	// Name is the event identifier.
	Name string
	// Registrants lists the declaring modules in first-registration order.
	Registrants []string
	// Description is the first non-empty description seen.
	Description string
	// Hook is the hook this event is bound to, if any.
	Hook string
	// Fallback is the event tried when no handler responds to this one.
	Fallback string
}

// binding tracks which module/tier currently owns a hook→event or
// event→fallback association, so later registrations can be resolved by
// tier precedence.
type binding struct {
	target string
	tier   int
	module string
}

// Events merges per-module event declarations, resolving hook and fallback
// bindings by tier precedence (lower tier wins; same-tier disagreement is a
// conflict).
type Events struct {
	infos     map[string]*EventInfo
	order     []string
	hooks     map[string]binding // hook id → bound event
	fallbacks map[string]binding // event → fallback event
	logger    *zap.Logger
}

// NewEvents returns an empty Events registry.
//
// Precondition: logger must be non-nil.
func NewEvents(logger *zap.Logger) *Events {
	return &Events{
		infos:     make(map[string]*EventInfo),
		hooks:     make(map[string]binding),
		fallbacks: make(map[string]binding),
		logger:    logger,
	}
}

// Register merges one module's declaration of event. The registrant set
// grows; the first non-empty description wins; hook and fallback bindings
// resolve by tier precedence.
//
// Precondition: event and moduleID must be non-empty; tier >= 1.
func (ev *Events) Register(event, moduleID string, tier int, description, hook, fallback string) error {
	info, ok := ev.infos[event]
	if !ok {
		info = &EventInfo{Name: event}
		ev.infos[event] = info
		ev.order = append(ev.order, event)
	}

	seen := false
	for _, m := range info.Registrants {
		if m == moduleID {
			seen = true
			break
		}
	}
	if !seen {
		info.Registrants = append(info.Registrants, moduleID)
	}

	if info.Description == "" && description != "" {
		info.Description = description
	}

	if hook != "" {
		if err := ev.bindHook(hook, event, moduleID, tier); err != nil {
			return err
		}
	}
	if fallback != "" {
		if err := ev.bindFallback(event, fallback, moduleID, tier); err != nil {
			return err
		}
	}
	return nil
}

// bindHook associates hook with event. A lower tier overrides an existing
// binding to a different event; the same tier binding to a different event
// is a conflict; rebinding to the same event is a no-op.
func (ev *Events) bindHook(hook, event, moduleID string, tier int) error {
	existing, ok := ev.hooks[hook]
	switch {
	case !ok:
		ev.hooks[hook] = binding{target: event, tier: tier, module: moduleID}
	case existing.target == event:
		if tier < existing.tier {
			ev.hooks[hook] = binding{target: event, tier: tier, module: moduleID}
		}
		return nil
	case tier == existing.tier:
		return authoringErrorf(moduleID, fmt.Sprintf("hook %q", hook),
			"already bound to event %q by module %q at tier %d; cannot also bind to %q",
			existing.target, existing.module, tier, event)
	case tier < existing.tier:
		ev.logger.Debug("events: hook binding overridden by lower tier",
			zap.String("hook", hook),
			zap.String("previous_event", existing.target),
			zap.String("event", event),
			zap.Int("tier", tier),
		)
		if old, ok := ev.infos[existing.target]; ok && old.Hook == hook {
			old.Hook = ""
		}
		ev.hooks[hook] = binding{target: event, tier: tier, module: moduleID}
	default:
		// Higher tier loses; keep the existing binding.
		return nil
	}

	ev.infos[event].Hook = hook
	return nil
}

// bindFallback associates event with a fallback event under the same tier
// precedence rules as hook bindings.
func (ev *Events) bindFallback(event, fallback, moduleID string, tier int) error {
	existing, ok := ev.fallbacks[event]
	switch {
	case !ok:
		ev.fallbacks[event] = binding{target: fallback, tier: tier, module: moduleID}
	case existing.target == fallback:
		if tier < existing.tier {
			ev.fallbacks[event] = binding{target: fallback, tier: tier, module: moduleID}
		}
		return nil
	case tier == existing.tier:
		return authoringErrorf(moduleID, fmt.Sprintf("event %q", event),
			"fallback already set to %q by module %q at tier %d; cannot also set to %q",
			existing.target, existing.module, tier, fallback)
	case tier < existing.tier:
		ev.fallbacks[event] = binding{target: fallback, tier: tier, module: moduleID}
	default:
		return nil
	}

	ev.infos[event].Fallback = fallback
	return nil
}

// Get returns the merged info for event, or (nil, false).
func (ev *Events) Get(event string) (*EventInfo, bool) {
	info, ok := ev.infos[event]
	return info, ok
}

// Known reports whether event was ever declared.
func (ev *Events) Known(event string) bool {
	_, ok := ev.infos[event]
	return ok
}

// Registrants returns the modules registered for event, in
// first-registration order. Unknown events yield nil.
func (ev *Events) Registrants(event string) []string {
	info, ok := ev.infos[event]
	if !ok {
		return nil
	}
	out := make([]string, len(info.Registrants))
	copy(out, info.Registrants)
	return out
}

// Fallback returns the fallback event configured for event, if any.
func (ev *Events) Fallback(event string) (string, bool) {
	b, ok := ev.fallbacks[event]
	if !ok {
		return "", false
	}
	return b.target, true
}

// HookBindings returns the resolved hook→event associations.
func (ev *Events) HookBindings() map[string]string {
	out := make(map[string]string, len(ev.hooks))
	for hook, b := range ev.hooks {
		out[hook] = b.target
	}
	return out
}

// EventsForHook returns every event bound to hook, in declaration order.
func (ev *Events) EventsForHook(hook string) []string {
	var out []string
	for _, name := range ev.order {
		if ev.infos[name].Hook == hook {
			out = append(out, name)
		}
	}
	return out
}

// All returns every declared event name in declaration order.
func (ev *Events) All() []string {
	out := make([]string, len(ev.order))
	copy(out, ev.order)
	return out
}
