package behavior

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/world"
)

func respond(res Response) Handler {
	return func(entity *world.Entity, ctx *world.Context) (Response, error) {
		return res, nil
	}
}

func testCtx() *world.Context {
	return world.NewContext(world.New(), nil, "", nil)
}

func TestCombine_AllowAndFeedbackOrder(t *testing.T) {
	out := Combine([]Response{
		{Allow: true, Feedback: "Squeak"},
		{Allow: false, Feedback: "Ouch"},
	})
	require.True(t, out.IsHandled())
	assert.False(t, out.Allow)
	assert.Equal(t, "Squeak\nOuch", out.Feedback)
}

func TestCombine_IgnoredNeverFlipsAllow(t *testing.T) {
	out := Combine([]Response{
		{Allow: true, Feedback: "fine"},
		{Allow: false, Feedback: "grumble", Ignored: true},
	})
	require.True(t, out.IsHandled())
	assert.True(t, out.Allow)
	// Normal feedback first, then ignored feedback.
	assert.Equal(t, "fine\ngrumble", out.Feedback)
}

func TestCombine_AllIgnored(t *testing.T) {
	out := Combine([]Response{
		{Allow: false, Feedback: "one", Ignored: true},
		{Allow: false, Feedback: "two", Ignored: true},
	})
	require.True(t, out.IsHandled())
	assert.True(t, out.Allow)
	assert.Equal(t, "one\ntwo", out.Feedback)
}

func TestCombine_SkipsEmptyFeedback(t *testing.T) {
	out := Combine([]Response{
		{Allow: true},
		{Allow: true, Feedback: "visible"},
	})
	assert.Equal(t, "visible", out.Feedback)
}

func TestCombine_Empty(t *testing.T) {
	assert.False(t, Combine(nil).IsHandled())
}

func TestInvoke_NoHandlersNoFallback(t *testing.T) {
	e := NewEngine(zap.NewNop())
	entity := &world.Entity{ID: "mouse", Behaviors: []string{"core"}}

	out := e.Invoke(entity, "on_squeeze", testCtx())
	assert.False(t, out.IsHandled())
}

func TestInvoke_EntityOrderDrivesCombination(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.RegisterHandler("squeaker", "on_squeeze", respond(Response{Allow: true, Feedback: "Squeak"}))
	e.RegisterHandler("biter", "on_squeeze", respond(Response{Allow: false, Feedback: "Ouch"}))

	entity := &world.Entity{ID: "mouse", Behaviors: []string{"squeaker", "biter"}}
	out := e.Invoke(entity, "on_squeeze", testCtx())

	require.True(t, out.IsHandled())
	assert.False(t, out.Allow)
	assert.Equal(t, "Squeak\nOuch", out.Feedback)
}

func TestInvoke_SkipsModulesWithoutHandler(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.RegisterHandler("biter", "on_squeeze", respond(Response{Allow: true, Feedback: "Ouch"}))

	entity := &world.Entity{ID: "mouse", Behaviors: []string{"decor", "biter", "scenery"}}
	out := e.Invoke(entity, "on_squeeze", testCtx())

	require.True(t, out.IsHandled())
	assert.Equal(t, "Ouch", out.Feedback)
}

func TestInvoke_FallbackChainReachesThirdEvent(t *testing.T) {
	// A → B → C with a handler only on C.
	e := NewEngine(zap.NewNop())
	fallbacks := map[string]string{"on_a": "on_b", "on_b": "on_c"}
	e.Fallback = func(event string) (string, bool) {
		fb, ok := fallbacks[event]
		return fb, ok
	}
	e.RegisterHandler("core", "on_c", respond(Response{Allow: true, Feedback: "reached C"}))

	entity := &world.Entity{ID: "thing", Behaviors: []string{"core"}}
	out := e.Invoke(entity, "on_a", testCtx())

	require.True(t, out.IsHandled())
	assert.Equal(t, "reached C", out.Feedback)
}

func TestInvoke_FallbackCycleTerminates(t *testing.T) {
	e := NewEngine(zap.NewNop())
	fallbacks := map[string]string{"on_a": "on_b", "on_b": "on_a"}
	e.Fallback = func(event string) (string, bool) {
		fb, ok := fallbacks[event]
		return fb, ok
	}

	entity := &world.Entity{ID: "thing", Behaviors: []string{"core"}}
	out := e.Invoke(entity, "on_a", testCtx())
	assert.False(t, out.IsHandled())
}

func TestInvoke_GlobalUsesRegistrantOrder(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Registrants = func(event string) []string {
		if event == "on_gossip" {
			return []string{"phases", "extra"}
		}
		return nil
	}
	e.RegisterHandler("phases", "on_gossip", respond(Response{Allow: true, Feedback: "first"}))
	e.RegisterHandler("extra", "on_gossip", respond(Response{Allow: true, Feedback: "second"}))

	out := e.Invoke(nil, "on_gossip", testCtx())
	require.True(t, out.IsHandled())
	assert.Equal(t, "first\nsecond", out.Feedback)
}

func TestInvoke_GlobalZeroRegistrantsNotHandled(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Registrants = func(event string) []string { return nil }

	out := e.Invoke(nil, "on_gossip", testCtx())
	assert.False(t, out.IsHandled())
}

func TestInvoke_HandlerErrorIsolatedFromSiblings(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.RegisterHandler("broken", "on_poke", func(entity *world.Entity, ctx *world.Context) (Response, error) {
		return Response{}, errors.New("nil property access")
	})
	e.RegisterHandler("solid", "on_poke", respond(Response{Allow: true, Feedback: "still here"}))

	entity := &world.Entity{ID: "thing", Behaviors: []string{"broken", "solid"}}
	out := e.Invoke(entity, "on_poke", testCtx())

	require.True(t, out.IsHandled())
	assert.True(t, out.Allow)
	assert.Equal(t, "still here", out.Feedback)
}

func TestInvoke_AllHandlersErrorFallsBack(t *testing.T) {
	e := NewEngine(zap.NewNop())
	fallbacks := map[string]string{"on_poke": "on_touch"}
	e.Fallback = func(event string) (string, bool) {
		fb, ok := fallbacks[event]
		return fb, ok
	}
	e.RegisterHandler("broken", "on_poke", func(entity *world.Entity, ctx *world.Context) (Response, error) {
		return Response{}, errors.New("boom")
	})
	e.RegisterHandler("broken", "on_touch", respond(Response{Allow: true, Feedback: "touched"}))

	entity := &world.Entity{ID: "thing", Behaviors: []string{"broken"}}
	out := e.Invoke(entity, "on_poke", testCtx())

	require.True(t, out.IsHandled())
	assert.Equal(t, "touched", out.Feedback)
}
