// Package dispatch resolves a verb to its registered command handlers and
// tries them in ascending tier order. A verb with no handler is an expected
// runtime miss, never an error.
package dispatch

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// Result is a command handler's outcome. OK means the command succeeded and
// dispatch stops; Message is user-facing text shown either way.
type Result struct {
	OK      bool
	Message string
}

// Handler executes one command against the shared game state.
type Handler func(ctx *world.Context) Result

type entry struct {
	tier   int
	fn     Handler
	module string
}

// Table maps verbs to tier-ordered handler lists. Multiple handlers per
// (verb, tier) from different modules are permitted and tried in
// registration order.
type Table struct {
	handlers map[string][]entry
	logger   *zap.Logger
}

// NewTable returns an empty handler table.
//
// Precondition: logger must be non-nil.
func NewTable(logger *zap.Logger) *Table {
	return &Table{
		handlers: make(map[string][]entry),
		logger:   logger,
	}
}

// Register adds a handler for verb at the given tier.
//
// Precondition: verb and moduleID must be non-empty; fn must be non-nil;
// tier >= 1.
func (t *Table) Register(verb string, tier int, moduleID string, fn Handler) {
	list := append(t.handlers[verb], entry{tier: tier, fn: fn, module: moduleID})
	sort.SliceStable(list, func(i, j int) bool { return list[i].tier < list[j].tier })
	t.handlers[verb] = list
}

// Handles reports whether at least one handler is registered for verb.
func (t *Table) Handles(verb string) bool {
	return len(t.handlers[verb]) > 0
}

// Verbs returns every verb with at least one handler, sorted.
func (t *Table) Verbs() []string {
	out := make([]string, 0, len(t.handlers))
	for v := range t.handlers {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Dispatch tries each handler for verb in ascending tier order and returns
// the first successful result. If every handler fails, it returns the
// failure from the highest-precedence attempt that carried a non-empty
// message, or the very last attempt when none did: informative failures win
// over generic ones regardless of tier. The second return is false when no
// handler is registered at all.
func (t *Table) Dispatch(verb string, ctx *world.Context) (Result, bool) {
	entries, ok := t.handlers[verb]
	if !ok || len(entries) == 0 {
		t.logger.Debug("dispatch: unhandled verb", zap.String("verb", verb))
		return Result{}, false
	}

	var (
		lastFailure Result
		bestFailure Result
		haveBest    bool
	)

	for _, e := range entries {
		res := e.fn(ctx)
		if res.OK {
			t.logger.Debug("dispatch: handled",
				zap.String("verb", verb),
				zap.String("module", e.module),
				zap.Int("tier", e.tier),
				zap.String("invocation", ctx.InvocationID),
			)
			return res, true
		}
		lastFailure = res
		if !haveBest && res.Message != "" {
			bestFailure = res
			haveBest = true
		}
	}

	if haveBest {
		return bestFailure, true
	}
	return lastFailure, true
}
