package pkg

func Transform[T, U any](items []T, fn func(T) U) []U {
	out := make([]U, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

func Filter[T any](items []T, predicate func(T) bool) []T {
	filtered := []T{}
	for _, item := range items {
		if predicate(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Converts a value suspected to be a Go numeric type to a float64.
// This kind of logic is needed all over the code because json decoding
// turns every number into a float64 while callers hand us ints.
func NumToFloat(num any) (float64, bool) {
	switch num := num.(type) {
	case int:
		return float64(num), true
	case int32:
		return float64(num), true
	case int64:
		return float64(num), true
	case float32:
		return float64(num), true
	case float64:
		return num, true
	}
	return 0, false
}
