package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/behavior"
	"github.com/cory-johannsen/fabula/internal/engine/dispatch"
	"github.com/cory-johannsen/fabula/internal/engine/module"
	"github.com/cory-johannsen/fabula/internal/engine/registry"
)

// Handlers is the explicit registration table a module supplies alongside
// its manifest: typed function references keyed by verb or event name. The
// core never scans names to discover handlers.
type Handlers struct {
	// Commands maps verbs to command handlers.
	Commands map[string]dispatch.Handler
	// Events maps event names to event handlers.
	Events map[string]behavior.Handler
}

// Register ingests one module's contributions at the given precedence tier.
// The contribution shape is validated first; any malformation fails the
// whole module's registration with a structured authoring error. On success
// each verb entry (main word plus synonyms) goes to the vocabulary registry,
// each explicit event declaration to the event registry, each hook
// definition to the hook registry, and each handler to its table.
//
// Precondition: moduleID must be non-empty and tier >= 1.
// Postcondition: returns nil, or an error that makes the whole load fatal.
func (c *Core) Register(moduleID string, tier int, contrib module.Contribution, handlers Handlers) error {
	if c.finalized {
		return &registry.AuthoringError{
			Module:  moduleID,
			Subject: "registration",
			Reason:  "registries are finalized; modules can only be registered during the load phase",
		}
	}
	if moduleID == "" {
		return &registry.AuthoringError{Subject: "registration", Reason: "module identifier must not be empty"}
	}
	if tier < 1 {
		return &registry.AuthoringError{
			Module:  moduleID,
			Subject: "registration",
			Reason:  fmt.Sprintf("tier must be a positive integer, got %d", tier),
		}
	}

	if err := validateShape(moduleID, contrib); err != nil {
		return err
	}

	for _, v := range contrib.Verbs {
		event := v.Event
		if event == "" {
			// A verb entry without an explicit event maps to the
			// conventional on_<word> event.
			event = registry.PrefixEntityScoped + v.Word
		}
		words := append([]string{v.Word}, v.Synonyms...)
		for _, w := range words {
			if err := c.vocab.RegisterVerbMapping(w, event, moduleID, tier); err != nil {
				return err
			}
		}
		// Events referenced only through vocabulary still count as
		// registered: handlers may implement them and global invocations
		// need a registrant order for them.
		if err := c.events.Register(event, moduleID, tier, "", "", ""); err != nil {
			return err
		}
	}

	for _, e := range contrib.Events {
		if err := c.events.Register(e.Event, moduleID, tier, e.Description, e.Hook, e.Fallback); err != nil {
			return err
		}
	}

	for _, hk := range contrib.Hooks {
		kind, err := registry.KindFromInvocation(hk.Invocation)
		if err != nil {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("hook %q", hk.HookID),
				Reason:  err.Error(),
			}
		}
		def := registry.HookDef{
			ID:          hk.HookID,
			Kind:        kind,
			After:       hk.After,
			Before:      hk.Before,
			Description: hk.Description,
			Module:      moduleID,
		}
		if err := c.hooks.Register(def); err != nil {
			return err
		}
	}

	for verb, fn := range handlers.Commands {
		if fn == nil {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("command handler %q", verb),
				Reason:  "handler function must not be nil",
			}
		}
		c.table.Register(verb, tier, moduleID, fn)
	}

	for event, fn := range handlers.Events {
		if fn == nil {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("event handler %q", event),
				Reason:  "handler function must not be nil",
			}
		}
		c.behaviors.RegisterHandler(moduleID, event, fn)
		c.handlerEvents[moduleID] = append(c.handlerEvents[moduleID], event)
	}

	if _, seen := c.handlerEvents[moduleID]; !seen {
		c.handlerEvents[moduleID] = nil
	}
	c.moduleOrder = appendUnique(c.moduleOrder, moduleID)

	c.logger.Debug("engine: module registered",
		zap.String("module", moduleID),
		zap.Int("tier", tier),
		zap.Int("verbs", len(contrib.Verbs)),
		zap.Int("events", len(contrib.Events)),
		zap.Int("hooks", len(contrib.Hooks)),
	)
	return nil
}

// validateShape checks the manifest-level invariants the registries do not
// enforce themselves.
func validateShape(moduleID string, contrib module.Contribution) error {
	for i, v := range contrib.Verbs {
		if v.Word == "" {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("verb entry %d", i),
				Reason:  "word must not be empty",
			}
		}
		for _, s := range v.Synonyms {
			if s == "" {
				return &registry.AuthoringError{
					Module:  moduleID,
					Subject: fmt.Sprintf("verb %q", v.Word),
					Reason:  "synonyms must be non-empty strings",
				}
			}
		}
	}
	for i, e := range contrib.Events {
		if e.Event == "" {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("event entry %d", i),
				Reason:  "event name must not be empty",
			}
		}
	}
	for i, h := range contrib.Hooks {
		if h.HookID == "" {
			return &registry.AuthoringError{
				Module:  moduleID,
				Subject: fmt.Sprintf("hook entry %d", i),
				Reason:  "hook_id must not be empty",
			}
		}
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
