package problemdetails

import (
	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/assistant/decide"
)

// model maps the turn's tags to the template directory to render. Compiled
// once at init; Predict is read-only and shared across turns.
//
//	notification ── yes ──> notification (greeting suppressed)
//	             └─ no ───> open? ── yes ──> hasRootCause? ── yes ──> open-rootcause
//	                              │                        └─ no ───> open
//	                              └─ no ───> resolved
var model = decide.MustCompile(&decide.Node{
	Name: "problem",
	Branches: []decide.Branch{
		{When: decide.TagIsTrue("notification"), Then: decide.Leaf("notification", "notification", suppressGreeting)},
	},
	Default: &decide.Node{
		Name: "status",
		Branches: []decide.Branch{
			{When: decide.TagIsTrue("open"), Then: &decide.Node{
				Name: "open",
				Branches: []decide.Branch{
					{When: decide.TagIsTrue("hasRootCause"), Then: decide.Leaf("open-rootcause", "open-rootcause", nil)},
				},
				Default: decide.Leaf("open-plain", "open", nil),
			}},
		},
		Default: decide.Leaf("resolved", "resolved", nil),
	},
})

// suppressGreeting keeps machine-generated notification turns from opening
// with a personal greeting.
func suppressGreeting(map[string]bool) map[string]bool {
	return map[string]bool{assistant.FlagSuppressGreeting: true}
}
