package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"common/greeting.tmpl":       {Data: []byte("Hi {{.user.name.first}}!")},
		"intents/demo/text.tmpl":     {Data: []byte("Problem {{.problem.id}} is {{.problem.status}}.\n")},
		"intents/demo/includes.tmpl": {Data: []byte(`{{template "common/greeting.tmpl" .}} Welcome back.`)},
		"notes.txt":                  {Data: []byte("not a template")},
	}
}

func testCtx() map[string]any {
	return map[string]any{
		"user":    map[string]any{"name": map[string]any{"first": "Dana"}},
		"problem": map[string]any{"id": "42", "status": "open"},
	}
}

func TestRenderByPath(t *testing.T) {
	eng, err := New(testFS())
	require.NoError(t, err)

	out, err := eng.Render("intents/demo/text.tmpl", testCtx())
	require.NoError(t, err)
	assert.Equal(t, "Problem 42 is open.", out)
}

func TestRenderUnknownPath(t *testing.T) {
	eng := MustNew(testFS())

	_, err := eng.Render("intents/missing.tmpl", testCtx())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenderMissingKeyFails(t *testing.T) {
	eng := MustNew(testFS())

	_, err := eng.Render("intents/demo/text.tmpl", map[string]any{"problem": map[string]any{"id": "42"}})
	assert.Error(t, err)
}

func TestTemplatesCanIncludeEachOther(t *testing.T) {
	eng := MustNew(testFS())

	out, err := eng.Render("intents/demo/includes.tmpl", testCtx())
	require.NoError(t, err)
	assert.Equal(t, "Hi Dana! Welcome back.", out)
}

func TestRenderStringUsesSharedNamespace(t *testing.T) {
	eng := MustNew(testFS())

	out, err := eng.RenderString(`{{template "common/greeting.tmpl" .}} How can I help?`, testCtx())
	require.NoError(t, err)
	assert.Equal(t, "Hi Dana! How can I help?", out)

	// Inline parses never pollute the shared namespace.
	assert.False(t, eng.Has("inline"))
}

func TestRenderDeterministic(t *testing.T) {
	eng := MustNew(testFS())

	first, err := eng.Render("intents/demo/text.tmpl", testCtx())
	require.NoError(t, err)
	second, err := eng.Render("intents/demo/text.tmpl", testCtx())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmbeddedSetParses(t *testing.T) {
	eng := Embedded()

	assert.True(t, eng.Has("common/greeting.tmpl"))
	assert.True(t, eng.Has("intents/problemdetails/open/text.tmpl"))
	assert.True(t, eng.Has("intents/problemdetails/notification/say.tmpl"))
	assert.False(t, eng.Has("intents/problemdetails"))
}
