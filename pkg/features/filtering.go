package features

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// ErrNilFilter is returned when a nil filter is passed
var ErrNilFilter = errors.New("filter cannot be nil")

// Filter decides whether an event may reach a sink.
// Implementations must be safe for concurrent use and must not modify the event.
type Filter interface {
	Allow(ev *types.Event) bool
}

// FilterFunc adapts an ordinary predicate to the Filter interface.
type FilterFunc func(ev *types.Event) bool

// Allow implements Filter.
func (f FilterFunc) Allow(ev *types.Event) bool {
	return f(ev)
}

// FilterChain is an ordered list of filters. An event passes the chain only
// when every filter allows it; evaluation stops at the first rejection.
type FilterChain []Filter

// NewFilterChain builds a chain, rejecting nil filters.
func NewFilterChain(filters ...Filter) (FilterChain, error) {
	chain := make(FilterChain, 0, len(filters))
	for i, f := range filters {
		if f == nil {
			return nil, fmt.Errorf("filter %d: %w", i, ErrNilFilter)
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// Allow implements Filter.
func (c FilterChain) Allow(ev *types.Event) bool {
	for _, f := range c {
		if !f.Allow(ev) {
			return false
		}
	}
	return true
}

// With returns a new chain holding c followed by more.
func (c FilterChain) With(more ...Filter) FilterChain {
	out := make(FilterChain, 0, len(c)+len(more))
	out = append(out, c...)
	for _, f := range more {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// LevelAtLeast allows events whose level is at or above min.
func LevelAtLeast(min types.Level) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		return ev.Level >= min
	})
}

// LevelBelow allows events strictly below max. Combined with LevelAtLeast it
// selects a band of levels, e.g. sending INFO..WARNING to stdout only.
func LevelBelow(max types.Level) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		return ev.Level < max
	})
}

// MessageContains allows events whose message contains substr.
func MessageContains(substr string) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		return strings.Contains(ev.Message, substr)
	})
}

// MessageMatches allows events whose message matches the regular expression.
func MessageMatches(expr string) (Filter, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression %q: %w", expr, err)
	}
	return FilterFunc(func(ev *types.Event) bool {
		return re.MatchString(ev.Message)
	}), nil
}

// FieldEquals allows events carrying key with a value equal to value.
// Values are compared by their fmt representation so 3 and "3" match.
func FieldEquals(key string, value interface{}) Filter {
	want := fmt.Sprintf("%v", value)
	return FilterFunc(func(ev *types.Event) bool {
		v, ok := ev.Fields.Get(key)
		return ok && fmt.Sprintf("%v", v) == want
	})
}

// HasField allows events carrying key.
func HasField(key string) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		_, ok := ev.Fields.Get(key)
		return ok
	})
}

// NameHasPrefix allows events whose source name starts with prefix, the
// hierarchical name filter of classic logging packages.
func NameHasPrefix(prefix string) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		return ev.Name == prefix || strings.HasPrefix(ev.Name, prefix+".") || prefix == ""
	})
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		return !f.Allow(ev)
	})
}

// AnyOf allows an event when at least one of filters allows it.
func AnyOf(filters ...Filter) Filter {
	return FilterFunc(func(ev *types.Event) bool {
		for _, f := range filters {
			if f.Allow(ev) {
				return true
			}
		}
		return false
	})
}
