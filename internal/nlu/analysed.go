package nlu

import "context"

// Analysed is the processed form of a user utterance as produced by the
// language-understanding collaborator. The engine treats it as an opaque
// bag keyed by intent-specific shape; only the typed accessors below are
// relied on.
type Analysed map[string]any

// Intent returns the classified intent name, or "" when absent.
func (a Analysed) Intent() string {
	s, _ := a.String("intent")
	return s
}

// String returns the string value stored under key.
func (a Analysed) String(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the boolean stored under key. Absent or non-boolean values
// read as false.
func (a Analysed) Bool(key string) bool {
	if a == nil {
		return false
	}
	v, ok := a[key].(bool)
	return ok && v
}

// Analyzer produces the analysed form of a raw utterance. Implementations
// typically call an external NLU service; the engine never inspects how.
type Analyzer interface {
	Analyse(ctx context.Context, text string, conversationContext map[string]any) (Analysed, error)
}

// Static returns the same analysed payload for every utterance. Used by
// tests and by system-triggered turns whose payload arrives pre-analysed.
type Static struct {
	Payload Analysed
}

func (s Static) Analyse(ctx context.Context, text string, conversationContext map[string]any) (Analysed, error) {
	return s.Payload, nil
}
