package assistant

// deepMerge merges src into dst recursively. Nested maps are merged key by
// key; any other value in src overwrites the one in dst. dst is mutated
// and returned.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dstMap, srcMap)
				continue
			}
			dst[k] = deepMerge(make(map[string]any, len(srcMap)), srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

// cloneContext deep-copies a context bag so a turn never aliases state
// visible to other turns.
func cloneContext(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			dst[k] = cloneContext(m)
			continue
		}
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
	return dst
}
