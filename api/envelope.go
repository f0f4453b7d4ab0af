package api

// The backend wraps payloads inconsistently: {data: {data: [...]}},
// {data: [...]}, {items: [...]} or a bare array/object. Extraction tries a
// fixed, ordered list of strategies and falls back to an empty default.

type listStrategy struct {
	name string
	path []string
}

// listStrategies is the order in which list envelopes are tried. The empty
// path matches a bare array.
var listStrategies = []listStrategy{
	{name: "data.data.items", path: []string{"data", "data", "items"}},
	{name: "data.data", path: []string{"data", "data"}},
	{name: "data.items", path: []string{"data", "items"}},
	{name: "data.results", path: []string{"data", "results"}},
	{name: "data", path: []string{"data"}},
	{name: "items", path: []string{"items"}},
	{name: "results", path: []string{"results"}},
	{name: "bare", path: nil},
}

var itemStrategies = []listStrategy{
	{name: "data.data", path: []string{"data", "data"}},
	{name: "data", path: []string{"data"}},
	{name: "bare", path: nil},
}

const StrategyDefault = "default"

// List is an unwrapped collection. Total comes from a "total" or "count"
// sibling of the items when the envelope carries one, else len(Items).
type List struct {
	Items    []any
	Total    int
	Strategy string
}

// ExtractList unwraps a decoded list payload. It never fails: an unknown
// shape yields an empty list with Strategy "default".
func ExtractList(payload any) List {
	for _, s := range listStrategies {
		container, value, ok := walk(payload, s.path)
		if !ok {
			continue
		}
		items, ok := value.([]any)
		if !ok {
			continue
		}
		return List{Items: items, Total: totalOf(container, len(items)), Strategy: s.name}
	}

	return List{Items: []any{}, Total: 0, Strategy: StrategyDefault}
}

// ExtractItem unwraps a decoded single-object payload, or returns nil when no
// strategy yields an object.
func ExtractItem(payload any) (any, string) {
	for _, s := range itemStrategies {
		_, value, ok := walk(payload, s.path)
		if !ok {
			continue
		}
		if object, ok := value.(map[string]any); ok {
			return object, s.name
		}
	}

	return nil, StrategyDefault
}

// walk follows path through nested objects and returns the final value and
// the object that holds it (nil for an empty path).
func walk(payload any, path []string) (map[string]any, any, bool) {
	if payload == nil {
		return nil, nil, false
	}

	var container map[string]any
	value := payload
	for _, field := range path {
		object, ok := value.(map[string]any)
		if !ok {
			return nil, nil, false
		}
		next, exists := object[field]
		if !exists || next == nil {
			return nil, nil, false
		}
		container = object
		value = next
	}

	return container, value, true
}

func totalOf(container map[string]any, fallback int) int {
	for _, field := range []string{"total", "count"} {
		if n, ok := container[field].(float64); ok && n >= 0 {
			return int(n)
		}
	}
	return fallback
}
