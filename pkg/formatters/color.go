package formatters

import (
	"fmt"
	"strings"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

const (
	colorBlue    = "\033[94m"
	colorGreen   = "\033[92m"
	colorYellow  = "\033[93m"
	colorRed     = "\033[91m"
	colorMagenta = "\033[95m"
	colorReset   = "\033[0m"
)

// ColorFormatter renders a padded, ANSI-colorized line for terminals.
// Structured fields follow the message as key=value pairs.
type ColorFormatter struct {
	Options FormatOptions
}

// NewColorFormatter creates a new color formatter
func NewColorFormatter() *ColorFormatter {
	return &ColorFormatter{Options: DefaultFormatOptions()}
}

// Render implements Renderer.
func (f *ColorFormatter) Render(ev *types.Event) ([]byte, error) {
	var b strings.Builder
	b.WriteString(levelColor(ev.Level))
	b.WriteString(f.Options.formatTime(ev.Time))
	b.WriteString(fmt.Sprintf(" [%-8s] %-15s: ", ev.Level.String(), ev.Name))
	b.WriteString(ev.Message)
	if len(ev.Fields) > 0 {
		b.WriteByte(' ')
		b.WriteString(joinFields(ev.Fields))
	}
	b.WriteString(colorReset)
	writeException(&b, ev.Exception)
	if f.Options.AppendNewline {
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
