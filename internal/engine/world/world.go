// Package world provides the shared game-state accessor the engine core
// reads during dispatch and behavior invocation: entities with their ordered
// attached-behavior lists, a free-form property bag per entity, and the
// current turn number. It has no dependency on the registries; the engine
// injects whatever it needs via callbacks.
package world

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity is a single addressable game object. Behaviors lists the attached
// behavior-module identifiers in declaration order; that order drives
// multi-handler combination.
type Entity struct {
	ID        string
	Name      string
	Behaviors []string
	Props     map[string]any
}

// HasBehavior reports whether moduleID appears in the entity's behavior list.
func (e *Entity) HasBehavior(moduleID string) bool {
	for _, b := range e.Behaviors {
		if b == moduleID {
			return true
		}
	}
	return false
}

// Prop returns the named property, or (nil, false) if unset.
func (e *Entity) Prop(key string) (any, bool) {
	v, ok := e.Props[key]
	return v, ok
}

// SetProp stores a property on the entity, allocating the bag on first use.
func (e *Entity) SetProp(key string, value any) {
	if e.Props == nil {
		e.Props = make(map[string]any)
	}
	e.Props[key] = value
}

// World holds all entities and the turn counter. Access is single-threaded:
// the engine runs dispatch, invocation, and turn phases inline on one
// goroutine, so World carries no locking.
type World struct {
	entities map[string]*Entity
	order    []string
	turn     int
}

// New returns an empty World at turn 0.
func New() *World {
	return &World{entities: make(map[string]*Entity)}
}

// AddEntity registers an entity.
//
// Precondition: e must be non-nil and e.ID non-empty.
// Postcondition: returns error if the ID is already taken.
func (w *World) AddEntity(e *Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("world: entity must have a non-empty ID")
	}
	if _, exists := w.entities[e.ID]; exists {
		return fmt.Errorf("world: duplicate entity ID %q", e.ID)
	}
	w.entities[e.ID] = e
	w.order = append(w.order, e.ID)
	return nil
}

// Entity returns the entity for id, or (nil, false) if not present.
func (w *World) Entity(id string) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns all entities in insertion order.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.entities[id])
	}
	return out
}

// Turn returns the current turn number.
func (w *World) Turn() int { return w.turn }

// AdvanceTurn increments the turn counter and returns the new turn number.
func (w *World) AdvanceTurn() int {
	w.turn++
	return w.turn
}

// Context carries everything a handler may read for one command or behavior
// invocation. A fresh invocation ID is minted per dispatch so log lines from
// every handler touched by one player input correlate.
type Context struct {
	InvocationID string
	World        *World
	Actor        *Entity
	Input        string
	Args         []string
}

// NewContext builds a Context for one invocation.
//
// Precondition: w must be non-nil; actor may be nil for global invocations.
func NewContext(w *World, actor *Entity, input string, args []string) *Context {
	return &Context{
		InvocationID: uuid.New().String(),
		World:        w,
		Actor:        actor,
		Input:        input,
		Args:         args,
	}
}

// Turn returns the world's current turn number, or 0 for a detached context.
func (c *Context) Turn() int {
	if c.World == nil {
		return 0
	}
	return c.World.Turn()
}
