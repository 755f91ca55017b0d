package features

import (
	"sort"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// ContextInjector merges a fixed set of fields into every event.
// The static set is copied at construction and never changed afterwards, so
// one injector can be shared by any number of goroutines.
type ContextInjector struct {
	static types.Fields
}

// NewContextInjector creates an injector for the given static fields.
// Duplicate keys keep the last value.
func NewContextInjector(static types.Fields) *ContextInjector {
	return &ContextInjector{static: types.Fields(nil).Merge(static...)}
}

// NewContextInjectorFromMap creates an injector from a plain map. Keys are
// ordered alphabetically so rendering is stable.
func NewContextInjectorFromMap(m map[string]interface{}) *ContextInjector {
	return NewContextInjector(SortedFields(m))
}

// Static returns a copy of the injected fields.
func (c *ContextInjector) Static() types.Fields {
	if c == nil || len(c.static) == 0 {
		return nil
	}
	out := make(types.Fields, len(c.static))
	copy(out, c.static)
	return out
}

// Merge returns the static fields followed by call; call fields win on key
// collisions.
func (c *ContextInjector) Merge(call types.Fields) types.Fields {
	if c == nil {
		return types.Fields(nil).Merge(call...)
	}
	return c.static.Merge(call...)
}

// SortedFields converts a map into fields ordered by key.
func SortedFields(m map[string]interface{}) types.Fields {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(types.Fields, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.F(k, m[k]))
	}
	return out
}
