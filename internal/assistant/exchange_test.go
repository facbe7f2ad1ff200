package assistant_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/conversation"
)

func newTestEngine(t *testing.T) (*assistant.Engine, *conversation.MemoryStore) {
	t.Helper()
	store := conversation.NewMemoryStore()
	return assistant.NewEngine(store), store
}

func testUser() assistant.User {
	return assistant.User{
		ID:       "user-1",
		Email:    "dana@example.com",
		Name:     assistant.Name{First: "Dana", Last: "Ops"},
		Timezone: "Europe/Vienna",
	}
}

func TestStartFirstInteraction(t *testing.T) {
	engine, _ := newTestEngine(t)

	ex, err := engine.NewExchange(testUser()).Start(context.Background(), "  what about problem 42?  ", "webchat")
	require.NoError(t, err)

	assert.True(t, ex.IsFirstInteraction())
	assert.Equal(t, "what about problem 42?", ex.RawRequest())
	assert.Equal(t, "webchat", ex.RequestSource())
	assert.Empty(t, ex.History())
	assert.Empty(t, ex.ConversationContext())
	require.NotNil(t, ex.Conversation())
	assert.Equal(t, "user-1", ex.Conversation().UserID)
}

func TestStartValidatesInput(t *testing.T) {
	engine, _ := newTestEngine(t)

	var validation *assistant.ValidationError

	_, err := engine.NewExchange(testUser()).Start(context.Background(), "   ", "webchat")
	require.ErrorAs(t, err, &validation)

	_, err = engine.NewExchange(testUser()).Start(context.Background(), "hello", "")
	require.ErrorAs(t, err, &validation)
}

func TestStartReusesExistingConversation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	_, err = first.Finish(ctx)
	require.NoError(t, err)

	second, err := engine.NewExchange(testUser()).Start(ctx, "hello again", "slack")
	require.NoError(t, err)

	assert.Equal(t, first.Conversation().ID, second.Conversation().ID)
	assert.False(t, second.IsFirstInteraction())
	assert.Len(t, second.History(), 1)
}

func TestContextInheritsMostRecentlyUpdatedTurn(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	convID := ex.Conversation().ID
	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	// A turn created earlier but updated later: its context must win.
	now := time.Now().UTC()
	store.InsertExchange(conversation.ExchangeRecord{
		ConversationID:      convID,
		Source:              "webchat",
		Request:             conversation.RequestRecord{Raw: "old turn, late update"},
		ConversationContext: map[string]any{"problemId": "99"},
		CreatedAt:           now.Add(-2 * time.Hour),
		UpdatedAt:           now.Add(time.Hour),
	})
	store.InsertExchange(conversation.ExchangeRecord{
		ConversationID:      convID,
		Source:              "webchat",
		Request:             conversation.RequestRecord{Raw: "new turn, early update"},
		ConversationContext: map[string]any{"problemId": "11"},
		CreatedAt:           now.Add(-time.Minute),
		UpdatedAt:           now.Add(-time.Minute),
	})

	next, err := engine.NewExchange(testUser()).Start(ctx, "and the root cause?", "webchat")
	require.NoError(t, err)

	assert.Equal(t, "99", next.ConversationContext()["problemId"])
}

func TestInheritedContextDoesNotAliasHistory(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	convID := ex.Conversation().ID
	ex.SetConversationContextValue("nested", map[string]any{"key": "original"})
	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	next, err := engine.NewExchange(testUser()).Start(ctx, "again", "webchat")
	require.NoError(t, err)
	next.ConversationContext()["nested"].(map[string]any)["key"] = "mutated"

	stored, err := store.ListRecentExchanges(ctx, convID, 10)
	require.NoError(t, err)
	assert.Equal(t, "original", stored[0].ConversationContext["nested"].(map[string]any)["key"])
}

func TestContextMutationsInvisibleUntilFinish(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	ex.SetConversationContextValue("problemId", "42")

	stored, err := store.ListRecentExchanges(ctx, ex.Conversation().ID, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)

	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	stored, err = store.ListRecentExchanges(ctx, ex.Conversation().ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "42", stored[0].ConversationContext["problemId"])
}

func TestFinishExactlyOnce(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)

	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	var validation *assistant.ValidationError
	_, err = ex.Finish(ctx)
	require.ErrorAs(t, err, &validation)

	stored, err := store.ListRecentExchanges(ctx, ex.Conversation().ID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestFinishWithoutStart(t *testing.T) {
	engine, _ := newTestEngine(t)

	var validation *assistant.ValidationError
	_, err := engine.NewExchange(testUser()).Finish(context.Background())
	require.ErrorAs(t, err, &validation)
}

func TestGreetSuppressedByFlag(t *testing.T) {
	engine, _ := newTestEngine(t)

	ex, err := engine.NewExchange(testUser()).Start(context.Background(), "hello", "webchat")
	require.NoError(t, err)

	ex.Greet()
	assert.True(t, ex.ShouldGreet())

	ex.ApplyFlags(map[string]bool{assistant.FlagSuppressGreeting: true})
	assert.False(t, ex.ShouldGreet())
}

func TestTemplateContextIncludesUserProfile(t *testing.T) {
	engine, _ := newTestEngine(t)

	ex, err := engine.NewExchange(testUser()).Start(context.Background(), "hello", "webchat")
	require.NoError(t, err)
	ex.AddTemplateContext(map[string]any{"problem": map[string]any{"id": "42"}})

	tc := ex.TemplateContext()
	user := tc["user"].(map[string]any)
	assert.Equal(t, "Dana", user["name"].(map[string]any)["first"])
	assert.Equal(t, "42", tc["problem"].(map[string]any)["id"])

	// The profile augmentation never leaks into the persisted context.
	_, leaked := ex.ConversationContext()["user"]
	assert.False(t, leaked)
}

func TestFollowUpRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "notify", "notification")
	require.NoError(t, err)
	ex.FollowUpQuestion("problemDetails", assistant.FollowUp{
		Question: "Would you like to hear the details?",
		Data:     map[string]any{"problemId": "42"},
		Routes:   map[string]string{"yes": "problemDetails"},
	})
	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	next, err := engine.NewExchange(testUser()).Start(ctx, "yes", "webchat")
	require.NoError(t, err)

	fu, ok := next.InheritedFollowUp()
	require.True(t, ok)
	assert.Equal(t, "problemDetails", fu.AskedBy)
	assert.Equal(t, "42", fu.Data["problemId"])
	assert.Equal(t, "problemDetails", fu.Routes["yes"])
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedContextProvidesReadYourWrites(t *testing.T) {
	_, client := newTestRedis(t)
	store := conversation.NewMemoryStore()
	engine := assistant.NewEngine(store,
		assistant.WithContextCache(conversation.NewContextCache(client, nil)),
	)
	ctx := context.Background()

	ex, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	ex.SetConversationContextValue("problemId", "42")
	_, err = ex.Finish(ctx)
	require.NoError(t, err)

	next, err := engine.NewExchange(testUser()).Start(ctx, "and the impact?", "webchat")
	require.NoError(t, err)
	assert.Equal(t, "42", next.ConversationContext()["problemId"])
	assert.False(t, next.IsFirstInteraction())
}

func TestStaleCachedContextYieldsToNewerStoredTurn(t *testing.T) {
	mr, client := newTestRedis(t)
	store := conversation.NewMemoryStore()
	engine := assistant.NewEngine(store,
		assistant.WithContextCache(conversation.NewContextCache(client, nil)),
	)
	ctx := context.Background()

	first, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	first.SetConversationContextValue("version", "v1")
	_, err = first.Finish(ctx)
	require.NoError(t, err)

	second, err := engine.NewExchange(testUser()).Start(ctx, "next", "webchat")
	require.NoError(t, err)
	require.Equal(t, "v1", second.ConversationContext()["version"])
	second.SetConversationContextValue("version", "v2")

	// The store write lands but the cache write fails, leaving the v1
	// snapshot cached. The cache write is best-effort so Finish succeeds.
	mr.SetError("redis unavailable")
	_, err = second.Finish(ctx)
	require.NoError(t, err)
	mr.SetError("")

	// The newer stored turn must win over the stale cached snapshot.
	third, err := engine.NewExchange(testUser()).Start(ctx, "and now?", "webchat")
	require.NoError(t, err)
	assert.Equal(t, "v2", third.ConversationContext()["version"])
}

func TestConcurrentTurnsWithoutLeaseLastWriteWins(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seed, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)
	convID := seed.Conversation().ID
	_, err = seed.Finish(ctx)
	require.NoError(t, err)

	// Two turns in flight at once: both start from the same snapshot.
	a, err := engine.NewExchange(testUser()).Start(ctx, "pick 41", "webchat")
	require.NoError(t, err)
	b, err := engine.NewExchange(testUser()).Start(ctx, "pick 42", "slack")
	require.NoError(t, err)

	a.SetConversationContextValue("problemId", "41")
	b.SetConversationContextValue("problemId", "42")

	_, err = a.Finish(ctx)
	require.NoError(t, err)
	_, err = b.Finish(ctx)
	require.NoError(t, err)

	// The turn persisted last never saw the other's update, and the next
	// turn inherits only its context.
	stored, err := store.ListRecentExchanges(ctx, convID, 10)
	require.NoError(t, err)
	assert.Equal(t, "42", stored[0].ConversationContext["problemId"])

	next, err := engine.NewExchange(testUser()).Start(ctx, "which one?", "webchat")
	require.NoError(t, err)
	assert.Equal(t, "42", next.ConversationContext()["problemId"])
}

func TestLeaseSerializesConcurrentTurns(t *testing.T) {
	_, client := newTestRedis(t)
	store := conversation.NewMemoryStore()
	leases := conversation.NewLeaseManager(client, 30*time.Second,
		conversation.WithAcquireWait(2*time.Second),
	)
	engine := assistant.NewEngine(store, assistant.WithLeaseManager(leases))
	ctx := context.Background()

	first, err := engine.NewExchange(testUser()).Start(ctx, "pick 41", "webchat")
	require.NoError(t, err)
	first.SetConversationContextValue("problemId", "41")

	type started struct {
		ex  *assistant.Exchange
		err error
	}
	results := make(chan started, 1)
	go func() {
		ex, err := engine.NewExchange(testUser()).Start(ctx, "and the impact?", "slack")
		results <- started{ex: ex, err: err}
	}()

	// The second turn stays blocked on the lease until the first persists,
	// so it inherits the first turn's context instead of racing it.
	time.Sleep(150 * time.Millisecond)
	_, err = first.Finish(ctx)
	require.NoError(t, err)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, "41", res.ex.ConversationContext()["problemId"])
	_, err = res.ex.Finish(ctx)
	require.NoError(t, err)
}

func TestLeaseRejectsOverlappingTurnWhenNotWaiting(t *testing.T) {
	_, client := newTestRedis(t)
	store := conversation.NewMemoryStore()
	leases := conversation.NewLeaseManager(client, 30*time.Second,
		conversation.WithAcquireWait(0),
	)
	engine := assistant.NewEngine(store, assistant.WithLeaseManager(leases))
	ctx := context.Background()

	first, err := engine.NewExchange(testUser()).Start(ctx, "hello", "webchat")
	require.NoError(t, err)

	_, err = engine.NewExchange(testUser()).Start(ctx, "me too", "slack")
	assert.ErrorIs(t, err, conversation.ErrLeaseHeld)

	_, err = first.Finish(ctx)
	require.NoError(t, err)

	// Finish released the lease; the next turn proceeds.
	_, err = engine.NewExchange(testUser()).Start(ctx, "again", "slack")
	require.NoError(t, err)
}

func TestEndMarksConversationFinished(t *testing.T) {
	engine, _ := newTestEngine(t)

	ex, err := engine.NewExchange(testUser()).Start(context.Background(), "bye", "webchat")
	require.NoError(t, err)

	assert.False(t, ex.ShouldConversationEnd())
	ex.End()
	assert.True(t, ex.ShouldConversationEnd())
}
