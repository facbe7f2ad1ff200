package assistant

// User identifies the person (or system principal) behind a turn. Owned by
// the external account service; immutable within a turn.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     Name   `json:"name"`
	Timezone string `json:"timezone,omitempty"`

	// Channels maps a channel identifier (e.g. "slack") to the user's
	// identity on that channel.
	Channels map[string]string `json:"channels,omitempty"`
}

// Name holds the split display name used by greeting templates.
type Name struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
}

// profileContext returns the read-only view of the user merged into every
// template context snapshot. Callers never see this written back into the
// persisted conversation context.
func (u User) profileContext() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":       u.ID,
			"email":    u.Email,
			"name":     map[string]any{"first": u.Name.First, "last": u.Name.Last},
			"timezone": u.Timezone,
		},
	}
}
