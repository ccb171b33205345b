package registry

import (
	"fmt"
	"strings"
)

// EntityBehaviors is the slice element the validator receives from the
// state accessor: one entity and its attached behavior-module list.
type EntityBehaviors struct {
	EntityID string
	Modules  []string
}

// Validate cross-checks every hook reference after all modules have loaded.
// It runs five checks in order and returns the first violation:
//
//  1. every stored hook's identifier prefix matches its kind;
//  2. every turn-phase hook's after/before entries reference an existing
//     turn-phase hook;
//  3. every event bound to a hook references a defined hook (the error lists
//     all known hook identifiers to aid debugging);
//  4. no hook identifier was ever declared with two different kinds;
//  5. no turn-phase hook's defining module is attached to an entity
//     (turn-phase hooks are global-only).
//
// All violations are fatal authoring errors; none are recoverable.
func Validate(hooks *Hooks, events *Events, entities []EntityBehaviors) error {
	for _, def := range hooks.All() {
		if err := checkHookNaming(def.ID, def.Kind); err != nil {
			return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID), "%s", err.Error())
		}
	}

	for _, def := range hooks.TurnPhase() {
		for _, field := range []struct {
			name string
			refs []string
		}{
			{"after", def.After},
			{"before", def.Before},
		} {
			for _, ref := range field.refs {
				target, ok := hooks.Get(ref)
				if !ok {
					return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID),
						"%s references undefined hook %q", field.name, ref)
				}
				if target.Kind != KindTurnPhase {
					return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID),
						"%s references %q which is %s, not turn_phase", field.name, ref, target.Kind)
				}
			}
		}
	}

	for hook, event := range events.HookBindings() {
		if _, ok := hooks.Get(hook); !ok {
			known := hooks.IDs()
			return authoringErrorf("", fmt.Sprintf("event %q", event),
				"bound to undefined hook %q; known hooks: [%s]", hook, strings.Join(known, ", "))
		}
	}

	for _, id := range hooks.IDs() {
		if kinds := hooks.declaredKinds(id); len(kinds) > 1 {
			return authoringErrorf("", fmt.Sprintf("hook %q", id),
				"declared with conflicting invocation kinds %s and %s", kinds[0], kinds[1])
		}
	}

	for _, def := range hooks.TurnPhase() {
		for _, eb := range entities {
			for _, m := range eb.Modules {
				if m == def.Module {
					return authoringErrorf(def.Module, fmt.Sprintf("hook %q", def.ID),
						"turn-phase hooks are global-only, but defining module %q is attached to entity %q",
						def.Module, eb.EntityID)
				}
			}
		}
	}

	return nil
}
