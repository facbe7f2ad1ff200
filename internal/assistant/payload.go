package assistant

import "fmt"

// Channel is one of the three output modalities of a response.
type Channel string

const (
	ChannelText Channel = "text" // displayed text
	ChannelSay  Channel = "say"  // spoken text (SSML)
	ChannelShow Channel = "show" // visual card
)

// Channels lists the modalities in resolution order.
var Channels = []Channel{ChannelText, ChannelSay, ChannelShow}

// Form says how a channel's content is supplied.
type Form uint8

const (
	FormLiteral        Form = iota + 1 // verbatim string
	FormTemplatePath                   // path under the template root
	FormTemplateSource                 // inline template source
)

func (f Form) String() string {
	switch f {
	case FormLiteral:
		return "literal"
	case FormTemplatePath:
		return "templatePath"
	case FormTemplateSource:
		return "templateSource"
	default:
		return "unset"
	}
}

// ChannelValue is one channel's content in exactly one form.
type ChannelValue struct {
	Form  Form
	Value string
}

// Payload names the nine optional response fields a handler may supply:
// three channels, each in at most one of three forms. Supplying more than
// one form for the same channel is a caller contract violation and is
// rejected rather than silently tie-broken.
type Payload struct {
	Text string
	Say  string
	Show string

	TextPath string
	SayPath  string
	ShowPath string

	TextString string
	SayString  string
	ShowString string
}

// compile validates the payload into per-channel slots.
func (p Payload) compile() (map[Channel]ChannelValue, error) {
	slots := make(map[Channel]ChannelValue, 3)
	groups := []struct {
		channel Channel
		fields  [3]string // literal, path, source
	}{
		{ChannelText, [3]string{p.Text, p.TextPath, p.TextString}},
		{ChannelSay, [3]string{p.Say, p.SayPath, p.SayString}},
		{ChannelShow, [3]string{p.Show, p.ShowPath, p.ShowString}},
	}
	forms := [3]Form{FormLiteral, FormTemplatePath, FormTemplateSource}

	empty := true
	for _, g := range groups {
		var set int
		for i, v := range g.fields {
			if v == "" {
				continue
			}
			set++
			if set > 1 {
				return nil, &ValidationError{
					Reason: fmt.Sprintf("channel %q supplied in more than one form", g.channel),
				}
			}
			slots[g.channel] = ChannelValue{Form: forms[i], Value: v}
			empty = false
		}
	}
	if empty {
		return nil, &ValidationError{Reason: "response payload names no channel"}
	}
	return slots, nil
}

// RawResponse holds the per-channel content supplied during a turn, prior
// to resolution. Last writer wins per channel across calls.
type RawResponse struct {
	slots map[Channel]ChannelValue
}

func newRawResponse() *RawResponse {
	return &RawResponse{slots: make(map[Channel]ChannelValue, 3)}
}

// Get returns the channel's value and whether it was supplied.
func (r *RawResponse) Get(ch Channel) (ChannelValue, bool) {
	if r == nil {
		return ChannelValue{}, false
	}
	v, ok := r.slots[ch]
	return v, ok
}

// IsEmpty reports whether no channel has been supplied yet.
func (r *RawResponse) IsEmpty() bool {
	return r == nil || len(r.slots) == 0
}

func (r *RawResponse) apply(slots map[Channel]ChannelValue) {
	for ch, v := range slots {
		r.slots[ch] = v
	}
}
