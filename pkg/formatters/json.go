package formatters

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONFormatter formats events as line-delimited JSON objects with the keys
// time, level, name, message and, when present, exception and fields.
type JSONFormatter struct {
	Options FormatOptions
	// OmitFields drops structured fields from the output.
	OmitFields bool
}

type jsonEntry struct {
	Time      string                 `json:"time"`
	Level     string                 `json:"level"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message"`
	Exception string                 `json:"exception,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		Options: DefaultFormatOptions(),
	}
}

// Render implements Renderer.
func (f *JSONFormatter) Render(ev *types.Event) ([]byte, error) {
	entry := jsonEntry{
		Time:    f.Options.formatTime(ev.Time),
		Level:   ev.Level.String(),
		Name:    ev.Name,
		Message: ev.Message,
	}
	if ev.Exception != nil {
		entry.Exception = exceptionText(ev.Exception)
	}
	if !f.OmitFields && len(ev.Fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(ev.Fields))
		for _, fld := range ev.Fields {
			entry.Fields[fld.Key] = safeValue(fld.Value)
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// Fall back to string values for fields the encoder rejected.
		for k, v := range entry.Fields {
			entry.Fields[k] = fmt.Sprintf("%v", v)
		}
		if data, err = json.Marshal(entry); err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
	}
	if f.Options.AppendNewline {
		data = append(data, '\n')
	}
	return data, nil
}
