package formatters

import (
	"fmt"
	"strings"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// TextFormatter renders events as a single human-readable line driven by a
// template. Placeholders are written as {time}, {level}, {name}, {message},
// {fields} or {<field key>}; the %(asctime)s family of placeholders is
// accepted as well so older configuration files keep working.
type TextFormatter struct {
	Options FormatOptions
	parts   []part
}

// NewTextFormatter creates a new text formatter for the given template.
// An empty template selects DefaultTemplate.
func NewTextFormatter(template string) *TextFormatter {
	opts := DefaultFormatOptions()
	if template != "" {
		opts.Template = template
	}
	return NewTextFormatterWithOptions(opts)
}

// NewTextFormatterWithOptions creates a text formatter from explicit options.
func NewTextFormatterWithOptions(opts FormatOptions) *TextFormatter {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	return &TextFormatter{
		Options: opts,
		parts:   parseTemplate(opts.Template),
	}
}

// Render implements Renderer.
func (f *TextFormatter) Render(ev *types.Event) ([]byte, error) {
	var b strings.Builder
	f.renderLine(&b, ev)
	writeException(&b, ev.Exception)
	if f.Options.AppendNewline {
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func (f *TextFormatter) renderLine(b *strings.Builder, ev *types.Event) {
	for _, p := range f.parts {
		if !p.placeholder {
			b.WriteString(p.text)
			continue
		}
		b.WriteString(f.resolve(p.text, ev))
	}
}

func (f *TextFormatter) resolve(key string, ev *types.Event) string {
	switch key {
	case "time", "asctime":
		return f.Options.formatTime(ev.Time)
	case "level", "levelname":
		return ev.Level.String()
	case "levelno":
		return fmt.Sprintf("%d", int(ev.Level))
	case "name":
		return ev.Name
	case "message":
		return ev.Message
	case "fields":
		return joinFields(ev.Fields)
	}
	if v, ok := ev.Fields.Get(key); ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

type part struct {
	text        string
	placeholder bool
}

// parseTemplate splits a template into literal and placeholder parts.
// Unterminated placeholders are kept as literal text.
func parseTemplate(tpl string) []part {
	var parts []part
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, part{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(tpl); i++ {
		switch {
		case tpl[i] == '{':
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				lit.WriteString(tpl[i:])
				i = len(tpl)
				continue
			}
			flush()
			parts = append(parts, part{text: tpl[i+1 : i+1+end], placeholder: true})
			i += end + 1
		case tpl[i] == '%' && i+1 < len(tpl) && tpl[i+1] == '(':
			end := strings.IndexByte(tpl[i+2:], ')')
			if end < 0 || i+2+end+1 >= len(tpl) {
				lit.WriteString(tpl[i:])
				i = len(tpl)
				continue
			}
			flush()
			parts = append(parts, part{text: tpl[i+2 : i+2+end], placeholder: true})
			// skip the conversion verb following ')', e.g. 's' or 'd'
			i += 2 + end + 1
		default:
			lit.WriteByte(tpl[i])
		}
	}
	flush()
	return parts
}
