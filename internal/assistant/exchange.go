package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/internal/nlu"
)

type exchangeState uint8

const (
	stateCreated exchangeState = iota
	stateConversationResolved
	stateHistoryLoaded
	stateModeled
	stateResponded
	stateFinished
	stateFailed
)

// FlagSuppressGreeting marks a turn that must not be greeted, e.g. a
// machine-generated notification rather than direct user speech.
const FlagSuppressGreeting = "suppressGreeting"

// Exchange orchestrates one turn: conversation lookup or creation, history
// retrieval, request/response modeling, follow-up tracking, and
// persistence. One Exchange serves exactly one turn and is not safe for
// concurrent use.
type Exchange struct {
	engine *Engine
	user   User

	state            exchangeState
	conversation     *conversation.Conversation
	record           *conversation.ExchangeRecord
	history          []conversation.ExchangeRecord
	firstInteraction bool

	shouldGreet     bool
	flags           map[string]bool
	templateContext map[string]any
	raw             *RawResponse
	followUp        *FollowUp
	consumed        *FollowUp

	lease *conversation.Lease
}

// Start begins the turn: validates the input, resolves or creates the
// user's conversation, loads recent history, inherits the most recent
// turn's context, and models the new exchange record. Returns the exchange
// for chaining.
func (ex *Exchange) Start(ctx context.Context, request, source string) (*Exchange, error) {
	if strings.TrimSpace(request) == "" {
		ex.state = stateFailed
		return nil, &ValidationError{Reason: "a user request is required"}
	}
	if strings.TrimSpace(source) == "" {
		ex.state = stateFailed
		return nil, &ValidationError{Reason: "a source is required"}
	}

	if err := ex.resolveConversation(ctx); err != nil {
		ex.state = stateFailed
		return nil, err
	}
	ex.state = stateConversationResolved

	if ex.engine.leases != nil {
		lease, err := ex.engine.leases.Acquire(ctx, ex.conversation.ID)
		if err != nil {
			ex.state = stateFailed
			return nil, err
		}
		ex.lease = lease
	}

	inherited, err := ex.loadHistory(ctx)
	if err != nil {
		ex.releaseLease(ctx)
		ex.state = stateFailed
		return nil, err
	}
	ex.state = stateHistoryLoaded

	ex.record = &conversation.ExchangeRecord{
		ID:                  uuid.New(),
		ConversationID:      ex.conversation.ID,
		Source:              source,
		Request:             conversation.RequestRecord{Raw: strings.TrimSpace(request)},
		ConversationContext: inherited,
	}
	ex.state = stateModeled
	return ex, nil
}

func (ex *Exchange) resolveConversation(ctx context.Context) error {
	return ex.engine.step(ctx, "resolve conversation", func(ctx context.Context) error {
		conv, err := ex.engine.store.FindConversation(ctx, ex.user.ID)
		if err != nil {
			return &PersistenceError{Op: "find conversation", Err: err}
		}
		if conv == nil {
			ex.engine.logger.Info("no prior conversation, starting a new one", "user_id", ex.user.ID)
			conv, err = ex.engine.store.CreateConversation(ctx, ex.user.ID)
			if err != nil {
				return &PersistenceError{Op: "create conversation", Err: err}
			}
		}
		ex.conversation = conv
		return nil
	})
}

// loadHistory fetches recent turns and returns the inherited context: the
// single most recently updated turn's stored context, or the empty mapping
// when no prior turn exists. Older history is kept for inspection only.
func (ex *Exchange) loadHistory(ctx context.Context) (map[string]any, error) {
	var inherited map[string]any
	err := ex.engine.step(ctx, "load history", func(ctx context.Context) error {
		history, err := ex.engine.store.ListRecentExchanges(ctx, ex.conversation.ID, ex.engine.historyLimit)
		if err != nil {
			return &PersistenceError{Op: "list exchanges", Err: err}
		}
		ex.history = history
		ex.firstInteraction = len(history) == 0

		if ex.engine.cache != nil {
			// Store indexes may lag their own writes; the cache provides
			// read-your-writes for the context snapshot. A cached entry can
			// itself be stale when a later turn's cache write failed, so it
			// only wins while at least as fresh as the newest stored turn.
			if cached, cachedAt, hit, err := ex.engine.cache.Load(ctx, ex.conversation.ID); err != nil {
				ex.engine.logger.Warn("context cache read failed", "error", err, "conversation_id", ex.conversation.ID)
			} else if hit && (len(history) == 0 || !cachedAt.Before(history[0].UpdatedAt)) {
				inherited = cloneContext(cached)
				ex.firstInteraction = false
				return nil
			}
		}

		if len(history) == 0 {
			inherited = map[string]any{}
			return nil
		}
		inherited = cloneContext(history[0].ConversationContext)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inherited, nil
}

// Greet marks that the rendered response should open with a greeting.
// Suppressed when the turn's flags mark it as machine-generated.
func (ex *Exchange) Greet() *Exchange {
	ex.shouldGreet = true
	return ex
}

// ShouldGreet reports whether the resolved response should be greeted.
func (ex *Exchange) ShouldGreet() bool {
	return ex.shouldGreet && !ex.flags[FlagSuppressGreeting]
}

// ApplyFlags merges flag updates produced by a decision's state function.
func (ex *Exchange) ApplyFlags(updates map[string]bool) *Exchange {
	for k, v := range updates {
		ex.flags[k] = v
	}
	return ex
}

// Flags returns a snapshot of the turn's session flags.
func (ex *Exchange) Flags() map[string]bool {
	snapshot := make(map[string]bool, len(ex.flags))
	for k, v := range ex.flags {
		snapshot[k] = v
	}
	return snapshot
}

// AddTemplateContext deep-merges key/values into the render-time context.
func (ex *Exchange) AddTemplateContext(obj map[string]any) *Exchange {
	deepMerge(ex.templateContext, obj)
	return ex
}

// TemplateContext returns a snapshot of the render-time context augmented
// with the user profile. The augmentation is non-destructive: user data is
// never written back into the merge-able store.
func (ex *Exchange) TemplateContext() map[string]any {
	snapshot := cloneContext(ex.templateContext)
	return deepMerge(snapshot, ex.user.profileContext())
}

// Respond supplies the turn's raw response payload. Each channel must be
// given in exactly one form; later calls overwrite earlier ones per
// channel.
func (ex *Exchange) Respond(payload Payload) error {
	slots, err := payload.compile()
	if err != nil {
		return err
	}
	ex.raw.apply(slots)
	return nil
}

// RespondText is the shorthand for a literal text-channel response.
func (ex *Exchange) RespondText(text string) error {
	if text == "" {
		return &ValidationError{Reason: "unable to use an empty string"}
	}
	return ex.Respond(Payload{Text: text})
}

// RawResponse returns the per-channel content supplied so far.
func (ex *Exchange) RawResponse() *RawResponse {
	return ex.raw
}

// FollowUpQuestion asks a follow-up, associating it with the handler that
// asked so the next turn can route the answer back. Only question, data,
// and routes are kept.
func (ex *Exchange) FollowUpQuestion(askedBy string, f FollowUp) *Exchange {
	kept := FollowUp{
		Question: f.Question,
		Data:     f.Data,
		Routes:   f.Routes,
		AskedBy:  askedBy,
	}
	ex.followUp = &kept
	ex.AddConversationContext(kept.followUpContext())
	return ex
}

// PendingFollowUp returns the follow-up asked during this turn, if any.
func (ex *Exchange) PendingFollowUp() (FollowUp, bool) {
	if ex.followUp == nil {
		return FollowUp{}, false
	}
	return *ex.followUp, true
}

// InheritedFollowUp returns the follow-up asked on the previous turn, so a
// handler can confirm the answer was routed back to it and recover the
// question's data. Remains readable for the rest of the turn even after
// routing consumed it from the context.
func (ex *Exchange) InheritedFollowUp() (FollowUp, bool) {
	if ex.consumed != nil {
		return *ex.consumed, true
	}
	return FollowUpFromContext(ex.ConversationContext())
}

// consumeInheritedFollowUp removes the answered question from the context
// carried forward, keeping it readable on this turn. An answered question
// must never route the turn after next.
func (ex *Exchange) consumeInheritedFollowUp() {
	if fu, ok := FollowUpFromContext(ex.ConversationContext()); ok {
		ex.consumed = &fu
		delete(ex.ConversationContext(), followUpContextKey)
	}
}

// End marks that the dialogue should finish after this turn. Does not
// persist.
func (ex *Exchange) End() *Exchange {
	ex.record.Response.Finished = true
	return ex
}

// Finish persists the turn exactly once. The lease, when held, is released
// whether or not persistence succeeds.
func (ex *Exchange) Finish(ctx context.Context) (*Exchange, error) {
	if ex.state == stateFinished {
		return nil, &ValidationError{Reason: "exchange already finished"}
	}
	if ex.record == nil {
		return nil, &ValidationError{Reason: "exchange was never started"}
	}
	defer ex.releaseLease(ctx)

	err := ex.engine.step(ctx, "save exchange", func(ctx context.Context) error {
		return ex.engine.store.SaveExchange(ctx, ex.record)
	})
	if err != nil {
		ex.state = stateFailed
		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "save exchange", Err: err}
	}

	if ex.engine.cache != nil {
		if err := ex.engine.cache.Save(ctx, ex.conversation.ID, ex.record.ConversationContext, ex.record.UpdatedAt); err != nil {
			ex.engine.logger.Warn("context cache write failed", "error", err, "conversation_id", ex.conversation.ID)
		}
	}

	ex.state = stateFinished
	return ex, nil
}

func (ex *Exchange) releaseLease(ctx context.Context) {
	if ex.lease == nil {
		return
	}
	if err := ex.lease.Release(ctx); err != nil {
		ex.engine.logger.Warn("lease release failed", "error", err, "conversation_id", ex.conversation.ID)
	}
	ex.lease = nil
}

// AddAnalysedData attaches the NLU collaborator's processed request.
func (ex *Exchange) AddAnalysedData(data nlu.Analysed) *Exchange {
	ex.record.Request.Analysed = data
	return ex
}

// AnalysedData returns the attached NLU output, which may be nil.
func (ex *Exchange) AnalysedData() nlu.Analysed {
	if ex.record == nil {
		return nil
	}
	return nlu.Analysed(ex.record.Request.Analysed)
}

// ConversationContext returns the turn's context bag, creating it when
// absent.
func (ex *Exchange) ConversationContext() map[string]any {
	if ex.record.ConversationContext == nil {
		ex.record.ConversationContext = map[string]any{}
	}
	return ex.record.ConversationContext
}

// AddConversationContext deep-merges obj into the context carried to the
// next turn. Visible only to this turn until Finish persists it.
func (ex *Exchange) AddConversationContext(obj map[string]any) *Exchange {
	ex.record.ConversationContext = deepMerge(ex.ConversationContext(), obj)
	return ex
}

// SetConversationContextValue sets a single context key.
func (ex *Exchange) SetConversationContextValue(key string, value any) *Exchange {
	ex.ConversationContext()[key] = value
	return ex
}

// SetResponse records the resolved channel outputs on the turn.
func (ex *Exchange) SetResponse(text, say, show string) *Exchange {
	ex.record.Response.Audible.SSML = say
	ex.record.Response.Visual.Text = text
	ex.record.Response.Visual.Card = show
	ex.state = stateResponded
	return ex
}

// Say sets the spoken response directly.
func (ex *Exchange) Say(ssml string) *Exchange {
	ex.record.Response.Audible.SSML = ssml
	return ex
}

// Show sets the visual card directly.
func (ex *Exchange) Show(card string) *Exchange {
	ex.record.Response.Visual.Card = card
	return ex
}

// Pure accessors. Missing nested values resolve to zero values, never
// panic.

func (ex *Exchange) AudibleResponse() string {
	if ex.record == nil {
		return ""
	}
	return ex.record.Response.Audible.SSML
}

func (ex *Exchange) VisualText() string {
	if ex.record == nil {
		return ""
	}
	return ex.record.Response.Visual.Text
}

func (ex *Exchange) VisualResponse() string {
	if ex.record == nil {
		return ""
	}
	return ex.record.Response.Visual.Card
}

func (ex *Exchange) ShouldConversationEnd() bool {
	return ex.record != nil && ex.record.Response.Finished
}

func (ex *Exchange) IsFirstInteraction() bool {
	return ex.firstInteraction
}

func (ex *Exchange) RawRequest() string {
	if ex.record == nil {
		return ""
	}
	return ex.record.Request.Raw
}

func (ex *Exchange) RequestSource() string {
	if ex.record == nil {
		return ""
	}
	return ex.record.Source
}

func (ex *Exchange) Timezone() string {
	return ex.user.Timezone
}

func (ex *Exchange) User() User {
	return ex.user
}

// Conversation returns the resolved conversation, nil before Start.
func (ex *Exchange) Conversation() *conversation.Conversation {
	return ex.conversation
}

// History returns the prior turns loaded at start, most recent first.
func (ex *Exchange) History() []conversation.ExchangeRecord {
	return ex.history
}

// Record exposes the turn record for persistence-adjacent collaborators
// such as the archive.
func (ex *Exchange) Record() *conversation.ExchangeRecord {
	return ex.record
}
