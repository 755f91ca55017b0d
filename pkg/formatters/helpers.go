package formatters

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// joinFields renders fields as space separated key=value pairs in order.
func joinFields(fields types.Fields) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(fmt.Sprintf("%v", f.Value))
	}
	return b.String()
}

// writeException appends the exception block on the lines following the event.
func writeException(b *strings.Builder, exc *types.Exception) {
	if exc == nil {
		return
	}
	b.WriteByte('\n')
	b.WriteString(exceptionText(exc))
}

func exceptionText(exc *types.Exception) string {
	text := exc.Message
	if exc.Type != "" {
		text = exc.Type + ": " + exc.Message
	}
	if exc.Stack != "" {
		text += "\n" + strings.TrimRight(exc.Stack, "\n")
	}
	return text
}

// safeValue replaces values the JSON encoder cannot represent.
func safeValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", value)
	}
	return value
}

func levelColor(level types.Level) string {
	switch {
	case level >= types.LevelCritical:
		return colorMagenta
	case level >= types.LevelError:
		return colorRed
	case level >= types.LevelWarning:
		return colorYellow
	case level >= types.LevelInfo:
		return colorGreen
	default:
		return colorBlue
	}
}
