package problemdetails

import (
	"github.com/argus-ai/argus/internal/assistant/decide"
	"github.com/argus-ai/argus/internal/monitoring"
	"github.com/argus-ai/argus/internal/nlu"
)

// tag derives the flat tag mapping the decision model consumes. Total and
// pure: every tag is always present, derived only from the analysed
// request and the fetched problem.
func tag(data nlu.Analysed, problem *monitoring.Problem) decide.Tags {
	tags := decide.Tags{
		"notification": data.Bool("notification"),
		"open":         false,
		"hasRootCause": false,
		"severity":     "",
		"hasOwner":     false,
	}
	if problem != nil {
		tags["open"] = problem.Open()
		tags["hasRootCause"] = problem.HasRootCause && problem.RootCauseText != ""
		tags["severity"] = problem.SeverityLevel
		tags["hasOwner"] = problem.OwnerEmail != ""
	}
	return tags
}
