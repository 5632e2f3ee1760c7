package formula

import (
	"sort"
	"strings"
	"time"
)

// Function is a callable usable from formulas. arguments arrive already
// evaluated.
type Function func(args ...Value) (Value, error)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// FunctionRegistry holds the builtin and custom function tables of one
// engine. names are case-insensitive and stored upper-cased.
type FunctionRegistry struct {
	builtins map[string]Function
	customs  map[string]Function
	clock    Clock
}

// NewFunctionRegistry creates a registry populated with the builtin
// library. a nil clock means wall-clock time.
func NewFunctionRegistry(clock Clock) *FunctionRegistry {
	if clock == nil {
		clock = &WallClock{}
	}
	r := &FunctionRegistry{
		customs: make(map[string]Function),
		clock:   clock,
	}
	r.builtins = newBuiltInFunctions(clock).table()
	return r
}

// Register adds or replaces a custom function. a custom function shadows a
// builtin of the same name. returns true if a previous custom function was
// replaced.
func (r *FunctionRegistry) Register(name string, fn Function) bool {
	key := strings.ToUpper(strings.TrimSpace(name))
	_, replaced := r.customs[key]
	r.customs[key] = fn
	return replaced
}

// Unregister removes a custom function, uncovering any builtin it shadowed
func (r *FunctionRegistry) Unregister(name string) bool {
	key := strings.ToUpper(strings.TrimSpace(name))
	if _, exists := r.customs[key]; !exists {
		return false
	}
	delete(r.customs, key)
	return true
}

// Lookup resolves a function name, customs first
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	fn, _, ok := r.resolve(strings.ToUpper(name))
	return fn, ok
}

// resolve expects an upper-cased name and reports whether the result is
// the builtin implementation
func (r *FunctionRegistry) resolve(key string) (Function, bool, bool) {
	if fn, ok := r.customs[key]; ok {
		return fn, false, true
	}
	if fn, ok := r.builtins[key]; ok {
		return fn, true, true
	}
	return nil, false, false
}

// IsBuiltin reports whether name is part of the builtin library,
// regardless of any custom shadowing
func (r *FunctionRegistry) IsBuiltin(name string) bool {
	_, ok := r.builtins[strings.ToUpper(name)]
	return ok
}

// IsCustom reports whether name has a registered custom function
func (r *FunctionRegistry) IsCustom(name string) bool {
	_, ok := r.customs[strings.ToUpper(name)]
	return ok
}

// Names returns every callable name, sorted
func (r *FunctionRegistry) Names() []string {
	seen := make(map[string]struct{}, len(r.builtins)+len(r.customs))
	for name := range r.builtins {
		seen[name] = struct{}{}
	}
	for name := range r.customs {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clock returns the clock used by the date builtins
func (r *FunctionRegistry) Clock() Clock {
	return r.clock
}

// isVolatileFunction returns true if the function result changes between
// calls with identical arguments, which makes its formulas uncacheable
func isVolatileFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY":
		return true
	default:
		return false
	}
}
