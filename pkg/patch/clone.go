package patch

// Clone deep-copies a value of the JSON object model. Maps and slices are
// copied recursively; scalars (string, float64, bool, nil) are returned
// as-is. Values outside the JSON model are also returned as-is; snapshots
// are built from decoded JSON, so none should appear.
func Clone(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}
