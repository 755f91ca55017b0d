package backends

import (
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// Backend is the transport behind a sink: it receives already rendered
// entries and moves them to their destination. A backend is driven by a
// single sink, but implementations still guard their own state because Flush
// and Close may arrive from the logger while a worker is writing.
type Backend interface {
	// Write delivers one rendered entry.
	Write(entry []byte) (int, error)

	// Flush ensures all buffered data is written
	Flush() error

	// Close releases the underlying transport. Calling Close more than once
	// must be safe.
	Close() error
}

// EventWriter is implemented by backends that want the source event next to
// the rendered bytes, for example to derive request headers from it.
type EventWriter interface {
	WriteEvent(ev *types.Event, entry []byte) (int, error)
}

// Rotator is implemented by file backends that roll over to backups.
type Rotator interface {
	// Rotate forces an immediate rotation.
	Rotate() error
	// SetRotateHook registers fn, called with the backup path after each rotation.
	SetRotateHook(fn func(backup string))
}
