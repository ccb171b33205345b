package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/behavior"
	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// PhaseReport records one turn-phase invocation that produced a handled
// outcome. Phases nothing responded to are omitted from the transcript.
type PhaseReport struct {
	Hook    string
	Event   string
	Outcome behavior.Outcome
}

// RunTurn advances the turn counter and fires every turn-phase hook in the
// cached scheduled order. Each event bound to a hook is invoked globally; a
// phase with no registered modules simply contributes nothing.
//
// Precondition: Finalize must have succeeded.
// Postcondition: the world turn counter is incremented by one.
func (c *Core) RunTurn() ([]PhaseReport, error) {
	if !c.finalized {
		return nil, fmt.Errorf("engine: RunTurn before Finalize")
	}

	turn := c.world.AdvanceTurn()
	var transcript []PhaseReport

	for _, hook := range c.phases {
		events := c.events.EventsForHook(hook)
		if len(events) == 0 {
			c.logger.Debug("engine: turn phase has no bound events",
				zap.String("hook", hook),
				zap.Int("turn", turn),
			)
			continue
		}
		for _, event := range events {
			ctx := world.NewContext(c.world, nil, "", nil)
			out := c.behaviors.Invoke(nil, event, ctx)
			if !out.IsHandled() {
				c.logger.Debug("engine: turn phase event not handled",
					zap.String("hook", hook),
					zap.String("event", event),
					zap.Int("turn", turn),
				)
				continue
			}
			transcript = append(transcript, PhaseReport{
				Hook:    hook,
				Event:   event,
				Outcome: out,
			})
		}
	}

	return transcript, nil
}
