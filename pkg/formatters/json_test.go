package formatters

import (
	"testing"
	"time"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

func TestJSONFormatter_Render(t *testing.T) {
	tests := []struct {
		name  string
		event func() *types.Event
		check func(t *testing.T, m map[string]interface{})
	}{
		{
			name:  "core keys",
			event: testEvent,
			check: func(t *testing.T, m map[string]interface{}) {
				if m["time"] != "2024-01-15 14:30:52.123" {
					t.Errorf("time = %v", m["time"])
				}
				if m["level"] != "WARNING" {
					t.Errorf("level = %v", m["level"])
				}
				if m["name"] != "billing" {
					t.Errorf("name = %v", m["name"])
				}
				if m["message"] != "invoice overdue" {
					t.Errorf("message = %v", m["message"])
				}
				if _, ok := m["exception"]; ok {
					t.Error("exception should be omitted")
				}
				fields, ok := m["fields"].(map[string]interface{})
				if !ok {
					t.Fatalf("fields missing: %v", m)
				}
				if fields["user"] != "alice" || fields["attempt"] != float64(3) {
					t.Errorf("fields = %v", fields)
				}
			},
		},
		{
			name: "exception",
			event: func() *types.Event {
				ev := testEvent()
				ev.Exception = &types.Exception{Message: "disk full"}
				return ev
			},
			check: func(t *testing.T, m map[string]interface{}) {
				if m["exception"] != "disk full" {
					t.Errorf("exception = %v", m["exception"])
				}
			},
		},
		{
			name: "unencodable field values",
			event: func() *types.Event {
				ev := testEvent()
				ev.Fields = types.Fields{types.F("fn", func() {}), types.F("ch", make(chan int))}
				return ev
			},
			check: func(t *testing.T, m map[string]interface{}) {
				fields := m["fields"].(map[string]interface{})
				if _, ok := fields["fn"].(string); !ok {
					t.Errorf("fn should be stringified, got %T", fields["fn"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewJSONFormatter()
			f.Options.TimeZone = time.UTC
			data, err := f.Render(tt.event())
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if data[len(data)-1] != '\n' {
				t.Error("expected trailing newline")
			}
			var m map[string]interface{}
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("failed to unmarshal JSON: %v", err)
			}
			tt.check(t, m)
		})
	}
}
