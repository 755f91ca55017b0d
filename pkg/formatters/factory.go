package formatters

import (
	"fmt"
	"strings"
	"sync"
)

// Formatter tags understood by the default factory.
const (
	TagText  = "text"
	TagJSON  = "json"
	TagColor = "color"
)

// Factory creates renderers by tag
type Factory struct {
	mu         sync.RWMutex
	formatters map[string]Constructor
}

// Constructor builds a renderer; template is the line layout for text based
// renderers and may be ignored by structured ones.
type Constructor func(template string) (Renderer, error)

var defaultFactory = NewFactory()

// NewFactory creates a new formatter factory with default formatters registered
func NewFactory() *Factory {
	f := &Factory{
		formatters: make(map[string]Constructor),
	}

	_ = f.Register(TagText, func(template string) (Renderer, error) {
		return NewTextFormatter(template), nil
	})
	_ = f.Register(TagJSON, func(string) (Renderer, error) {
		return NewJSONFormatter(), nil
	})
	_ = f.Register(TagColor, func(string) (Renderer, error) {
		return NewColorFormatter(), nil
	})

	return f
}

// Register registers a new formatter constructor
func (f *Factory) Register(name string, constructor Constructor) error {
	if name == "" {
		return fmt.Errorf("formatter name cannot be empty")
	}
	if constructor == nil {
		return fmt.Errorf("formatter constructor cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.formatters[strings.ToLower(name)] = constructor
	return nil
}

// Create builds the renderer registered under tag. An empty tag selects the
// text renderer.
func (f *Factory) Create(tag, template string) (Renderer, error) {
	if tag == "" {
		tag = TagText
	}

	f.mu.RLock()
	constructor, exists := f.formatters[strings.ToLower(tag)]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported formatter %q", tag)
	}
	return constructor(template)
}

// Create builds a renderer from the default factory.
func Create(tag, template string) (Renderer, error) {
	return defaultFactory.Create(tag, template)
}

// Register adds a constructor to the default factory.
func Register(name string, constructor Constructor) error {
	return defaultFactory.Register(name, constructor)
}
