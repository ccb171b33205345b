// Package behavior invokes every attached module that implements an event,
// combines their responses, and follows fallback-event chains. "Nothing
// responded" is an explicit, typed NotHandled outcome — the expected common
// case, never an error.
package behavior

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// Response is one handler's answer to an event. Ignored responses contribute
// feedback text but are excluded from the allow/deny combination.
type Response struct {
	Allow    bool
	Feedback string
	Ignored  bool
}

// Handler implements one event for one module. entity is nil for global
// (turn-phase) invocations. A returned error is that module's own fault; it
// is isolated from sibling handlers.
type Handler func(entity *world.Entity, ctx *world.Context) (Response, error)

// Outcome is the two-variant result of an invocation: Handled carries the
// combined allow flag and feedback, NotHandled carries nothing.
type Outcome struct {
	handled  bool
	Allow    bool
	Feedback string
}

// Handled builds a handled outcome.
func Handled(allow bool, feedback string) Outcome {
	return Outcome{handled: true, Allow: allow, Feedback: feedback}
}

// NotHandled builds the neutral "nothing responded" outcome.
func NotHandled() Outcome {
	return Outcome{}
}

// IsHandled reports whether any handler responded.
func (o Outcome) IsHandled() bool { return o.handled }

// Combine merges two or more responses. Responses are partitioned into
// ignored and normal: if every response is ignored the combined outcome
// allows with only the ignored feedback; otherwise allow is the logical AND
// over normal responses and feedback concatenates normal responses first,
// then ignored ones, each group in handler-invocation order.
func Combine(responses []Response) Outcome {
	if len(responses) == 0 {
		return NotHandled()
	}

	var normal, ignored []Response
	for _, r := range responses {
		if r.Ignored {
			ignored = append(ignored, r)
		} else {
			normal = append(normal, r)
		}
	}

	var lines []string
	appendFeedback := func(rs []Response) {
		for _, r := range rs {
			if r.Feedback != "" {
				lines = append(lines, r.Feedback)
			}
		}
	}

	if len(normal) == 0 {
		appendFeedback(ignored)
		return Handled(true, strings.Join(lines, "\n"))
	}

	allow := true
	for _, r := range normal {
		allow = allow && r.Allow
	}
	appendFeedback(normal)
	appendFeedback(ignored)
	return Handled(allow, strings.Join(lines, "\n"))
}

// Engine holds the per-module event handler tables and the registry lookups
// it needs at invocation time. The lookup funcs are injected after
// construction; nil lookups behave as empty registries.
type Engine struct {
	handlers map[string]map[string]Handler // module → event → handler
	logger   *zap.Logger

	// Registrants returns the modules registered for an event, in
	// first-registration order. Used for global invocations.
	Registrants func(event string) []string
	// Fallback returns the fallback event configured for an event.
	Fallback func(event string) (string, bool)
}

// NewEngine returns an Engine with no handlers.
//
// Precondition: logger must be non-nil.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		handlers: make(map[string]map[string]Handler),
		logger:   logger,
	}
}

// RegisterHandler stores fn as moduleID's implementation of event,
// overwriting any previous registration by the same module.
//
// Precondition: moduleID and event must be non-empty; fn must be non-nil.
func (e *Engine) RegisterHandler(moduleID, event string, fn Handler) {
	if e.handlers[moduleID] == nil {
		e.handlers[moduleID] = make(map[string]Handler)
	}
	e.handlers[moduleID][event] = fn
}

// HasHandler reports whether moduleID implements event.
func (e *Engine) HasHandler(moduleID, event string) bool {
	_, ok := e.handlers[moduleID][event]
	return ok
}

// Invoke runs event against entity (or globally when entity is nil),
// following the fallback chain when nothing responds. A repeated event on
// one chain terminates the walk as NotHandled rather than looping.
func (e *Engine) Invoke(entity *world.Entity, event string, ctx *world.Context) Outcome {
	visited := make(map[string]bool)
	current := event

	for {
		if visited[current] {
			e.logger.Debug("behavior: fallback chain revisited event",
				zap.String("event", current),
			)
			return NotHandled()
		}
		visited[current] = true

		if out := e.invokeOnce(entity, current, ctx); out.IsHandled() {
			return out
		}

		next, ok := e.fallbackFor(current)
		if !ok {
			e.logger.Debug("behavior: no handler responded",
				zap.String("event", current),
			)
			return NotHandled()
		}
		e.logger.Debug("behavior: trying fallback event",
			zap.String("event", current),
			zap.String("fallback", next),
		)
		current = next
	}
}

// invokeOnce attempts a single event without fallback. The module iteration
// order is the entity's declared behavior list, or the event's registrant
// order for global invocations.
func (e *Engine) invokeOnce(entity *world.Entity, event string, ctx *world.Context) Outcome {
	var modules []string
	if entity != nil {
		modules = entity.Behaviors
	} else if e.Registrants != nil {
		modules = e.Registrants(event)
	}

	var responses []Response
	for _, m := range modules {
		fn, ok := e.handlers[m][event]
		if !ok {
			continue
		}
		res, err := fn(entity, ctx)
		if err != nil {
			// One module's fault stays that module's problem: drop its
			// contribution and continue with the siblings.
			e.logger.Warn("behavior: handler failed",
				zap.String("module", m),
				zap.String("event", event),
				zap.Error(err),
			)
			continue
		}
		responses = append(responses, res)
	}

	return Combine(responses)
}

func (e *Engine) fallbackFor(event string) (string, bool) {
	if e.Fallback == nil {
		return "", false
	}
	return e.Fallback(event)
}
