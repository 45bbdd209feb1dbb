package api

import "maps"

type (
	// Args represents a map of named values passed to or from steps
	Args map[Name]any

	// Name is a string identifier for argument and configuration keys
	Name string

	// Context accumulates the outputs of completed steps, keyed by the id of
	// the step that produced them
	Context map[StepID]Args
)

// Set creates a new Args with the specified name-value pair added
func (a Args) Set(name Name, value any) Args {
	if a == nil {
		return Args{name: value}
	}
	res := maps.Clone(a)
	res[name] = value
	return res
}

// GetString retrieves a string value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetString(name Name, defaultValue string) string {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetBool(name Name, defaultValue bool) bool {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetInt retrieves an integer value from args, returning defaultValue if not
// found or wrong type. Supports both int and float64 (converting from JSON
// numbers)
func (a Args) GetInt(name Name, defaultValue int) int {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// GetArgs retrieves a nested map value from args, accepting either Args or a
// plain decoded JSON object
func (a Args) GetArgs(name Name) (Args, bool) {
	switch v := a[name].(type) {
	case Args:
		return v, true
	case map[string]any:
		res := make(Args, len(v))
		for k, val := range v {
			res[Name(k)] = val
		}
		return res, true
	default:
		return nil, false
	}
}

// Clone returns a shallow copy of the Context
func (c Context) Clone() Context {
	return maps.Clone(c)
}

// With returns a new Context that includes the output of the given step
func (c Context) With(id StepID, out Args) Context {
	res := maps.Clone(c)
	if res == nil {
		res = Context{}
	}
	res[id] = out
	return res
}
