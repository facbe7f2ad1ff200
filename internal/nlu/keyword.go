package nlu

import (
	"context"
	"regexp"
	"strings"
)

var problemIDRe = regexp.MustCompile(`(?i)problem\s+#?([A-Za-z0-9_-]+)`)

// Keyword is a deterministic rule-based analyzer. It covers the shipped
// intents without an external NLU service; a hosted analyzer can replace
// it behind the same interface.
type Keyword struct{}

// Analyse classifies the utterance by keyword rules. Bare yes/no answers
// carry no intent; follow-up routing resolves them from the raw text.
func (Keyword) Analyse(_ context.Context, text string, _ map[string]any) (Analysed, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	a := Analysed{}

	if m := problemIDRe.FindStringSubmatch(text); m != nil {
		a["intent"] = "problemDetails"
		a["problemId"] = m[1]
		return a, nil
	}
	if strings.Contains(lower, "problem") || strings.Contains(lower, "root cause") || strings.Contains(lower, "details") {
		a["intent"] = "problemDetails"
		return a, nil
	}
	return a, nil
}
