package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/engine/world"
)

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func testCtx() *world.Context {
	return world.NewContext(world.New(), nil, "take lantern", []string{"lantern"})
}

func TestLoad_BuildsHandlerTables(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"manifest.yaml": "verbs:\n  - word: take\n    event: on_take\n",
		"mod.lua": `
function cmd_take(ctx)
  return { ok = true, message = "You take the " .. ctx.args[1] .. "." }
end

function handle_on_take(ctx)
  return { allow = true, feedback = "taken" }
end

function helper_not_exported(ctx)
  return nil
end
`,
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()

	mod, err := mgr.Load(dir, "core", 0)
	require.NoError(t, err)

	assert.Equal(t, "core", mod.ID)
	require.Len(t, mod.Contribution.Verbs, 1)
	assert.Contains(t, mod.Handlers.Commands, "take")
	assert.Contains(t, mod.Handlers.Events, "on_take")
	assert.Len(t, mod.Handlers.Commands, 1)
	assert.Len(t, mod.Handlers.Events, 1)
}

func TestLoad_NoManifest(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": "function cmd_wave(ctx)\n  return { ok = true, message = \"You wave.\" }\nend\n",
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()

	mod, err := mgr.Load(dir, "gestures", 0)
	require.NoError(t, err)
	assert.Empty(t, mod.Contribution.Verbs)
	assert.Contains(t, mod.Handlers.Commands, "wave")
}

func TestLoad_LuaSyntaxError(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"bad.lua": "function cmd_take(ctx\n",
	})

	mgr := NewManager(zap.NewNop())
	_, err := mgr.Load(dir, "broken", 0)
	assert.Error(t, err)
}

func TestCommandHandler_RoundTrip(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": `
function cmd_take(ctx)
  if #ctx.args == 0 then
    return { ok = false, message = "Take what?" }
  end
  return { ok = true, message = "You take the " .. ctx.args[1] .. "." }
end
`,
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "core", 0)
	require.NoError(t, err)

	res := mod.Handlers.Commands["take"](testCtx())
	assert.True(t, res.OK)
	assert.Equal(t, "You take the lantern.", res.Message)

	empty := world.NewContext(world.New(), nil, "take", nil)
	res = mod.Handlers.Commands["take"](empty)
	assert.False(t, res.OK)
	assert.Equal(t, "Take what?", res.Message)
}

func TestEventHandler_RoundTrip(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": `
function handle_on_squeeze(ctx)
  if ctx.entity and ctx.entity.props.timid then
    return { allow = false, feedback = "It squeaks in protest." }
  end
  return { allow = true, feedback = "Nothing happens." }
end
`,
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "core", 0)
	require.NoError(t, err)

	handler := mod.Handlers.Events["on_squeeze"]
	require.NotNil(t, handler)

	mouse := &world.Entity{ID: "mouse", Props: map[string]any{"timid": true}}
	res, err := handler(mouse, testCtx())
	require.NoError(t, err)
	assert.False(t, res.Allow)
	assert.Equal(t, "It squeaks in protest.", res.Feedback)

	rock := &world.Entity{ID: "rock"}
	res, err = handler(rock, testCtx())
	require.NoError(t, err)
	assert.True(t, res.Allow)
}

func TestEventHandler_NilReturnMeansAllow(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": "function handle_on_touch(ctx)\nend\n",
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "core", 0)
	require.NoError(t, err)

	res, err := mod.Handlers.Events["on_touch"](nil, testCtx())
	require.NoError(t, err)
	assert.True(t, res.Allow)
	assert.Empty(t, res.Feedback)
	assert.False(t, res.Ignored)
}

func TestEventHandler_RuntimeErrorPropagates(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": "function handle_on_touch(ctx)\n  error(\"nil property access\")\nend\n",
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "broken", 0)
	require.NoError(t, err)

	_, err = mod.Handlers.Events["on_touch"](nil, testCtx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_touch")
}

func TestCommandHandler_RuntimeErrorIsSilentFailure(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": "function cmd_take(ctx)\n  error(\"boom\")\nend\n",
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "broken", 0)
	require.NoError(t, err)

	res := mod.Handlers.Commands["take"](testCtx())
	assert.False(t, res.OK)
	assert.Empty(t, res.Message)
}

func TestSandbox_EscapeHatchesRemoved(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"mod.lua": `
function cmd_escape(ctx)
  if dofile == nil and loadfile == nil and load == nil and require == nil then
    return { ok = true, message = "sandboxed" }
  end
  return { ok = false, message = "escape hatch present" }
end
`,
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "probe", 0)
	require.NoError(t, err)

	res := mod.Handlers.Commands["escape"](testCtx())
	assert.True(t, res.OK)
	assert.Equal(t, "sandboxed", res.Message)
}

func TestLexicographicSourceOrder(t *testing.T) {
	// b.lua overwrites the global defined by a.lua; files run in name order.
	dir := writeModule(t, map[string]string{
		"a.lua": "function cmd_probe(ctx)\n  return { ok = true, message = \"from a\" }\nend\n",
		"b.lua": "function cmd_probe(ctx)\n  return { ok = true, message = \"from b\" }\nend\n",
	})

	mgr := NewManager(zap.NewNop())
	defer mgr.Close()
	mod, err := mgr.Load(dir, "order", 0)
	require.NoError(t, err)

	res := mod.Handlers.Commands["probe"](testCtx())
	assert.Equal(t, "from b", res.Message)
}
