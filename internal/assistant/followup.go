package assistant

// FollowUp is a pending question plus the routing metadata needed to
// interpret the next turn's answer. It is not persisted as a first-class
// entity; it rides inside the conversation context bag.
type FollowUp struct {
	Question string            `json:"question"`
	Data     map[string]any    `json:"data,omitempty"`
	Routes   map[string]string `json:"routes,omitempty"` // answer pattern -> handler name, matched exactly
	AskedBy  string            `json:"askedBy,omitempty"`
}

const followUpContextKey = "followUp"

// followUpContext flattens the follow-up into the context bag.
func (f FollowUp) followUpContext() map[string]any {
	routes := make(map[string]any, len(f.Routes))
	for k, v := range f.Routes {
		routes[k] = v
	}
	return map[string]any{
		followUpContextKey: map[string]any{
			"question": f.Question,
			"data":     f.Data,
			"routes":   routes,
			"askedBy":  f.AskedBy,
		},
	}
}

// FollowUpFromContext reconstructs the prior turn's follow-up from an
// inherited context bag, so the current turn can confirm the answer is
// routed back to the component that asked.
func FollowUpFromContext(conversationContext map[string]any) (FollowUp, bool) {
	raw, ok := conversationContext[followUpContextKey].(map[string]any)
	if !ok {
		return FollowUp{}, false
	}
	f := FollowUp{Routes: make(map[string]string)}
	if q, ok := raw["question"].(string); ok {
		f.Question = q
	}
	if d, ok := raw["data"].(map[string]any); ok {
		f.Data = d
	}
	if a, ok := raw["askedBy"].(string); ok {
		f.AskedBy = a
	}
	if routes, ok := raw["routes"].(map[string]any); ok {
		for k, v := range routes {
			if handler, ok := v.(string); ok {
				f.Routes[k] = handler
			}
		}
	}
	if f.Question == "" && len(f.Routes) == 0 {
		return FollowUp{}, false
	}
	return f, true
}
