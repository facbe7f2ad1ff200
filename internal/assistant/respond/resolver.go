// Package respond turns a decision plus the turn's raw response payload
// into the final channel-neutral output.
package respond

import (
	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/assistant/decide"
	"github.com/argus-ai/argus/internal/templates"
)

// GreetingTemplate is the shared greeting rendered ahead of the text and
// spoken channels on greet-eligible turns.
const GreetingTemplate = "common/greeting.tmpl"

// Resolved is the channel-neutral response tuple handed to adapters.
type Resolved struct {
	Text string
	Say  string
	Show string
}

// Resolve renders each supplied channel of the exchange's raw response:
// literals verbatim, template paths through the shared engine, inline
// sources against the same namespace. The decision's state function is
// applied exactly once, after rendering and before the greeting check, so
// it can still suppress the greeting. Rendering the same decision and
// context twice yields byte-identical output.
func Resolve(eng *templates.Engine, ex *assistant.Exchange, dec *decide.Decision) (Resolved, error) {
	raw := ex.RawResponse()
	if raw.IsEmpty() {
		return Resolved{}, &assistant.ValidationError{Reason: "no response was provided by the intent"}
	}

	ctx := ex.TemplateContext()

	var out Resolved
	targets := map[assistant.Channel]*string{
		assistant.ChannelText: &out.Text,
		assistant.ChannelSay:  &out.Say,
		assistant.ChannelShow: &out.Show,
	}
	for _, ch := range assistant.Channels {
		value, ok := raw.Get(ch)
		if !ok {
			continue
		}
		rendered, err := renderChannel(eng, value, ctx)
		if err != nil {
			return Resolved{}, err
		}
		*targets[ch] = rendered
	}

	if dec != nil && dec.State != nil {
		ex.ApplyFlags(dec.State(ex.Flags()))
	}

	if ex.ShouldGreet() {
		greeting, err := eng.Render(GreetingTemplate, ctx)
		if err != nil {
			return Resolved{}, &assistant.TemplateError{Template: GreetingTemplate, Err: err}
		}
		if out.Text != "" {
			out.Text = greeting + " " + out.Text
		}
		if out.Say != "" {
			out.Say = greeting + " " + out.Say
		}
	}

	ex.SetResponse(out.Text, out.Say, out.Show)
	return out, nil
}

func renderChannel(eng *templates.Engine, value assistant.ChannelValue, ctx map[string]any) (string, error) {
	switch value.Form {
	case assistant.FormLiteral:
		return value.Value, nil
	case assistant.FormTemplatePath:
		rendered, err := eng.Render(value.Value, ctx)
		if err != nil {
			return "", &assistant.TemplateError{Template: value.Value, Err: err}
		}
		return rendered, nil
	case assistant.FormTemplateSource:
		rendered, err := eng.RenderString(value.Value, ctx)
		if err != nil {
			return "", &assistant.TemplateError{Template: "inline", Err: err}
		}
		return rendered, nil
	default:
		return "", &assistant.ValidationError{Reason: "channel value has no form"}
	}
}
