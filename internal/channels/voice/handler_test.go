package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/conversation"
)

type fakeService struct {
	ex  *assistant.Exchange
	err error
}

func (f *fakeService) Interact(ctx context.Context, user assistant.User, text, source string) (*assistant.Exchange, error) {
	return f.ex, f.err
}

func spokenExchange(t *testing.T, text, say, card string) *assistant.Exchange {
	t.Helper()
	engine := assistant.NewEngine(conversation.NewMemoryStore())
	ex, err := engine.NewExchange(assistant.User{ID: "voice-1"}).Start(context.Background(), "hello", Source)
	require.NoError(t, err)
	ex.SetResponse(text, say, card)
	return ex
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/channels/voice", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP(t *testing.T) {
	svc := &fakeService{ex: spokenExchange(t, "Problem 42 is open.", "Problem 42 is still open.", "Card body")}
	h := NewHandler(svc, nil)

	rec := post(t, h, `{"user":{"id":"voice-1","firstName":"Dana"},"utterance":"what about problem 42?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "SSML", env.Response.OutputSpeech.Type)
	assert.Equal(t, "<speak>Problem 42 is still open.</speak>", env.Response.OutputSpeech.SSML)
	require.NotNil(t, env.Response.Card)
	assert.Equal(t, "Card body", env.Response.Card.Content)
}

func TestServeHTTPRejectsBadInput(t *testing.T) {
	h := NewHandler(&fakeService{}, nil)

	assert.Equal(t, http.StatusBadRequest, post(t, h, `nope`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"user":{"id":"voice-1"},"utterance":""}`).Code)
}

func TestServeHTTPTurnFailure(t *testing.T) {
	h := NewHandler(&fakeService{err: errors.New("store down")}, nil)

	rec := post(t, h, `{"user":{"id":"voice-1"},"utterance":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeHTTPSpokenFallbacks(t *testing.T) {
	// A voice user cannot read an HTTP status. Failures with user-safe
	// wording come back as valid SSML and end the session.
	cases := []struct {
		name string
		err  error
	}{
		{"validation", &assistant.ValidationError{Reason: "a user request is required"}},
		{"decision", &assistant.DecisionError{Reason: "no leaf reached"}},
		{"template", &assistant.TemplateError{Template: "problem-details", Err: errors.New("missing reference")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeService{err: tc.err}, nil)

			rec := post(t, h, `{"user":{"id":"voice-1"},"utterance":"hello"}`)
			require.Equal(t, http.StatusOK, rec.Code)

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.True(t, env.Response.ShouldEndSession)
			assert.Equal(t, "SSML", env.Response.OutputSpeech.Type)
			assert.True(t, strings.HasPrefix(env.Response.OutputSpeech.SSML, "<speak>"))
			assert.Contains(t, env.Response.OutputSpeech.SSML, "I'm sorry")
		})
	}
}

func TestBuildEnvelopeFallsBackToVisualText(t *testing.T) {
	env := BuildEnvelope(spokenExchange(t, "Only text here.", "", ""))

	assert.Equal(t, "<speak>Only text here.</speak>", env.Response.OutputSpeech.SSML)
	assert.Nil(t, env.Response.Card)
}

func TestWrapSSML(t *testing.T) {
	assert.Equal(t, "<speak>hello</speak>", WrapSSML("hello"))
	assert.Equal(t, "<speak>hello</speak>", WrapSSML("  <speak>hello</speak> "))
	assert.Equal(t, "<speak></speak>", WrapSSML(""))
}
