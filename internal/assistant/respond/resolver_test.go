package respond_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/assistant/decide"
	"github.com/argus-ai/argus/internal/assistant/respond"
	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/internal/templates"
)

func testEngine(t *testing.T) *templates.Engine {
	t.Helper()
	return templates.MustNew(fstest.MapFS{
		"common/greeting.tmpl":   {Data: []byte("Hi {{.user.name.first}}!")},
		"intents/demo/text.tmpl": {Data: []byte("Problem {{.problem.id}} is open.")},
		"intents/demo/say.tmpl":  {Data: []byte("Problem {{.problem.id}} is still open.")},
		"intents/bad/text.tmpl":  {Data: []byte("{{.missing.key}}")},
	})
}

func startExchange(t *testing.T) *assistant.Exchange {
	t.Helper()
	engine := assistant.NewEngine(conversation.NewMemoryStore())
	user := assistant.User{ID: "u1", Name: assistant.Name{First: "Dana"}}
	ex, err := engine.NewExchange(user).Start(context.Background(), "what about problem 42?", "webchat")
	require.NoError(t, err)
	ex.AddTemplateContext(map[string]any{"problem": map[string]any{"id": "42"}})
	return ex
}

func TestResolveAllThreeForms(t *testing.T) {
	ex := startExchange(t)
	require.NoError(t, ex.Respond(assistant.Payload{
		TextPath:   "intents/demo/text.tmpl",
		Say:        "Problem 42 is open.",
		ShowString: "Card for {{.problem.id}}",
	}))

	out, err := respond.Resolve(testEngine(t), ex, nil)
	require.NoError(t, err)

	assert.Equal(t, "Problem 42 is open.", out.Text)
	assert.Equal(t, "Problem 42 is open.", out.Say)
	assert.Equal(t, "Card for 42", out.Show)

	// The resolved output is recorded on the turn.
	assert.Equal(t, out.Text, ex.VisualText())
	assert.Equal(t, out.Say, ex.AudibleResponse())
	assert.Equal(t, out.Show, ex.VisualResponse())
}

func TestResolveEmptyPayloadRejected(t *testing.T) {
	ex := startExchange(t)

	_, err := respond.Resolve(testEngine(t), ex, nil)

	var validation *assistant.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestResolveTemplateFailure(t *testing.T) {
	ex := startExchange(t)
	require.NoError(t, ex.Respond(assistant.Payload{TextPath: "intents/bad/text.tmpl"}))

	_, err := respond.Resolve(testEngine(t), ex, nil)

	var tmplErr *assistant.TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "intents/bad/text.tmpl", tmplErr.Template)
}

func TestResolveGreetsTextAndSayOnly(t *testing.T) {
	ex := startExchange(t)
	ex.Greet()
	require.NoError(t, ex.Respond(assistant.Payload{
		Text: "Problem 42 is open.",
		Say:  "Problem 42 is open.",
		Show: "Card",
	}))

	out, err := respond.Resolve(testEngine(t), ex, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hi Dana! Problem 42 is open.", out.Text)
	assert.Equal(t, "Hi Dana! Problem 42 is open.", out.Say)
	assert.Equal(t, "Card", out.Show)
}

func TestResolveStateFnCanSuppressGreeting(t *testing.T) {
	ex := startExchange(t)
	ex.Greet()
	require.NoError(t, ex.Respond(assistant.Payload{Text: "notification text"}))

	dec := &decide.Decision{
		Template: "notification",
		State: func(map[string]bool) map[string]bool {
			return map[string]bool{assistant.FlagSuppressGreeting: true}
		},
	}

	out, err := respond.Resolve(testEngine(t), ex, dec)
	require.NoError(t, err)
	assert.Equal(t, "notification text", out.Text)
	assert.True(t, ex.Flags()[assistant.FlagSuppressGreeting])
}

func TestResolveIdempotentForSameInputs(t *testing.T) {
	eng := testEngine(t)

	run := func() respond.Resolved {
		ex := startExchange(t)
		require.NoError(t, ex.Respond(assistant.Payload{TextPath: "intents/demo/text.tmpl", SayPath: "intents/demo/say.tmpl"}))
		out, err := respond.Resolve(eng, ex, nil)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, run(), run())
}
