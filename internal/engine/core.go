// Package engine composes the registries, scheduler, dispatcher, and
// behavior invocation engine into one Core built once per session. There is
// no ambient global state: tests construct isolated Cores.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/behavior"
	"github.com/cory-johannsen/fabula/internal/engine/dispatch"
	"github.com/cory-johannsen/fabula/internal/engine/registry"
	"github.com/cory-johannsen/fabula/internal/engine/schedule"
	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// Core is the extension-registration and turn-phase scheduling core. All
// registration happens during a single load phase; Finalize validates the
// merged registries and computes the cached turn-phase order. After a
// successful Finalize the registries are immutable.
type Core struct {
	vocab     *registry.Vocabulary
	events    *registry.Events
	hooks     *registry.Hooks
	table     *dispatch.Table
	behaviors *behavior.Engine
	world     *world.World
	logger    *zap.Logger

	// handlerEvents records, per module, the event names its event handlers
	// were registered under; Finalize cross-checks them against the event
	// registry so a typo surfaces at load time.
	handlerEvents map[string][]string
	moduleOrder   []string

	finalized bool
	phases    []string
}

// New builds an empty Core over the given world.
//
// Precondition: w and logger must be non-nil.
func New(w *world.World, logger *zap.Logger) *Core {
	c := &Core{
		vocab:         registry.NewVocabulary(logger),
		events:        registry.NewEvents(logger),
		hooks:         registry.NewHooks(logger),
		table:         dispatch.NewTable(logger),
		behaviors:     behavior.NewEngine(logger),
		world:         w,
		logger:        logger,
		handlerEvents: make(map[string][]string),
	}
	c.behaviors.Registrants = c.events.Registrants
	c.behaviors.Fallback = c.events.Fallback
	return c
}

// World returns the state accessor the Core was built over.
func (c *Core) World() *world.World { return c.world }

// Finalize validates the merged registries and computes the turn-phase
// order. It must run exactly once after all modules are registered; calling
// it again is a no-op.
//
// Postcondition: on success the scheduled order is cached and no further
// Register calls are accepted.
func (c *Core) Finalize() error {
	if c.finalized {
		return nil
	}

	for _, m := range c.moduleOrder {
		for _, event := range c.handlerEvents[m] {
			if !c.events.Known(event) {
				return &registry.AuthoringError{
					Module:  m,
					Subject: fmt.Sprintf("event handler for %q", event),
					Reason:  "no such event is registered (check the handler name for typos)",
				}
			}
		}
	}

	entities := make([]registry.EntityBehaviors, 0)
	for _, e := range c.world.Entities() {
		entities = append(entities, registry.EntityBehaviors{
			EntityID: e.ID,
			Modules:  e.Behaviors,
		})
	}

	if err := registry.Validate(c.hooks, c.events, entities); err != nil {
		return err
	}

	phases, err := schedule.Compute(c.hooks.All())
	if err != nil {
		return err
	}

	c.phases = phases
	c.finalized = true
	c.logger.Info("engine: finalized",
		zap.Int("modules", len(c.moduleOrder)),
		zap.Int("turn_phases", len(phases)),
	)
	return nil
}

// Finalized reports whether Finalize has completed successfully.
func (c *Core) Finalized() bool { return c.finalized }

// OrderedTurnPhases returns a copy of the cached turn-phase execution order.
//
// Precondition: Finalize must have succeeded; before that the order is nil.
func (c *Core) OrderedTurnPhases() []string {
	out := make([]string, len(c.phases))
	copy(out, c.phases)
	return out
}

// Dispatch resolves verb to its highest-precedence handler and falls through
// lower tiers on failure. The second return is false when no handler is
// registered for the verb at all.
func (c *Core) Dispatch(verb string, ctx *world.Context) (dispatch.Result, bool) {
	return c.table.Dispatch(verb, ctx)
}

// InvokeBehavior runs event against entity (nil for global), following the
// configured fallback chain when nothing responds.
func (c *Core) InvokeBehavior(entity *world.Entity, event string, ctx *world.Context) behavior.Outcome {
	return c.behaviors.Invoke(entity, event, ctx)
}

// EventForVerb returns the highest-precedence event for word.
func (c *Core) EventForVerb(word string) (string, bool) {
	return c.vocab.EventForVerb(word)
}

// EventsForVerb returns every (tier, event) binding for word, ascending by
// tier.
func (c *Core) EventsForVerb(word string) []registry.VerbBinding {
	return c.vocab.EventsForVerb(word)
}

// Vocabulary returns a snapshot of the verb table for help-style consumers:
// every word mapped to its tier-ordered bindings.
func (c *Core) Vocabulary() map[string][]registry.VerbBinding {
	out := make(map[string][]registry.VerbBinding)
	for _, w := range c.vocab.Words() {
		out[w] = c.vocab.EventsForVerb(w)
	}
	return out
}

// HandledVerbs returns every verb with at least one command handler.
func (c *Core) HandledVerbs() []string {
	return c.table.Verbs()
}
