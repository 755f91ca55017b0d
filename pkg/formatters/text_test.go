package formatters

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

func testEvent() *types.Event {
	return &types.Event{
		Time:    time.Date(2024, 1, 15, 14, 30, 52, 123000000, time.UTC),
		Level:   types.LevelWarning,
		Name:    "billing",
		Message: "invoice overdue",
		Fields:  types.Fields{types.F("user", "alice"), types.F("attempt", 3)},
	}
}

func TestTextFormatter_Render(t *testing.T) {
	utc := DefaultFormatOptions()
	utc.TimeZone = time.UTC

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "default template",
			template: "",
			want:     "2024-01-15 14:30:52.123 [WARNING] billing: invoice overdue\n",
		},
		{
			name:     "brace placeholders with fields",
			template: "{level}|{message}|{fields}",
			want:     "WARNING|invoice overdue|user=alice attempt=3\n",
		},
		{
			name:     "percent placeholders",
			template: "%(levelname)s %(name)s: %(message)s",
			want:     "WARNING billing: invoice overdue\n",
		},
		{
			name:     "field lookup by key",
			template: "{message} user={user} missing={nope}",
			want:     "invoice overdue user=alice missing=\n",
		},
		{
			name:     "unterminated placeholder kept literal",
			template: "{message} {broken",
			want:     "invoice overdue {broken\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := utc
			if tt.template != "" {
				opts.Template = tt.template
			}
			f := NewTextFormatterWithOptions(opts)
			got, err := f.Render(testEvent())
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextFormatter_Exception(t *testing.T) {
	ev := testEvent()
	ev.Exception = &types.Exception{Type: "*errors.errorString", Message: "boom", Stack: "main.go:10\n"}

	f := NewTextFormatter("{message}")
	got, err := f.Render(ev)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(got), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), got)
	}
	if lines[1] != "*errors.errorString: boom" {
		t.Errorf("unexpected exception line %q", lines[1])
	}
	if lines[2] != "main.go:10" {
		t.Errorf("unexpected stack line %q", lines[2])
	}
}

func TestColorFormatter_Render(t *testing.T) {
	f := NewColorFormatter()
	f.Options.TimeZone = time.UTC

	ev := testEvent()
	ev.Level = types.LevelError
	got, err := f.Render(ev)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	s := string(got)
	if !strings.HasPrefix(s, colorRed) {
		t.Errorf("expected red prefix, got %q", s)
	}
	if !strings.Contains(s, "[ERROR   ] billing        : invoice overdue user=alice attempt=3") {
		t.Errorf("unexpected body %q", s)
	}
	if !strings.HasSuffix(s, colorReset+"\n") {
		t.Errorf("expected reset suffix, got %q", s)
	}
}

func TestFactory(t *testing.T) {
	for _, tag := range []string{"", "text", "JSON", "color"} {
		if _, err := Create(tag, ""); err != nil {
			t.Errorf("Create(%q) error = %v", tag, err)
		}
	}
	if _, err := Create("xml", ""); err == nil {
		t.Error("expected error for unknown formatter")
	}

	f := NewFactory()
	if err := f.Register("", nil); err == nil {
		t.Error("expected error for empty name")
	}
	custom := RenderFunc(func(ev *types.Event) ([]byte, error) {
		return nil, errors.New("never")
	})
	if err := f.Register("custom", func(string) (Renderer, error) { return custom, nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	r, err := f.Create("custom", "")
	if err != nil {
		t.Fatalf("Create(custom) error = %v", err)
	}
	if _, err := r.Render(testEvent()); err == nil {
		t.Error("expected custom renderer error")
	}
}
