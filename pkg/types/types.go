package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Level is the ordered severity of an event.
// The numeric values leave room between levels so configuration files may
// carry either the name or the number.
type Level int

// Log levels, lowest to highest severity.
const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

// String returns the canonical upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "LEVEL" + strconv.Itoa(int(l))
	}
}

// ParseLevel converts a level name or number into a Level.
// Names are case-insensitive; "WARN" and "FATAL" are accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return Level(n), nil
}

// Field is a single structured key/value pair attached to an event.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for constructing a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Fields is an ordered set of structured fields. Keys are unique once the
// set has been built through Merge.
type Fields []Field

// Get returns the value stored under key.
func (fs Fields) Get(key string) (interface{}, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Merge returns a new set holding fs followed by overrides. A key present in
// both keeps its original position and takes the override's value.
// Neither input is modified.
func (fs Fields) Merge(overrides ...Field) Fields {
	if len(fs) == 0 && len(overrides) == 0 {
		return nil
	}
	out := make(Fields, 0, len(fs)+len(overrides))
	index := make(map[string]int, len(fs)+len(overrides))
	for _, list := range [][]Field{fs, overrides} {
		for _, f := range list {
			if i, ok := index[f.Key]; ok {
				out[i].Value = f.Value
				continue
			}
			index[f.Key] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// Map returns the fields as a plain map, for renderers that do not care
// about ordering.
func (fs Fields) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(fs))
	for _, f := range fs {
		m[f.Key] = f.Value
	}
	return m
}

// Exception carries the details of an error attached to an event.
type Exception struct {
	Type    string
	Message string
	Stack   string
}

// Event is one log record flowing through the pipeline.
// An Event is built by the Logger and must not be modified afterwards:
// every sink reads the same instance concurrently.
type Event struct {
	ID        string
	Time      time.Time
	Level     Level
	Name      string
	Message   string
	Fields    Fields
	Exception *Exception
}
