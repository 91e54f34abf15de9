// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func writeJSON(t *testing.T, s *RingSink, fields map[string]any) {
	t.Helper()
	data, _ := json.Marshal(fields)
	data = append(data, '\n')
	n, err := s.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(data) {
		t.Errorf("Write() = %d, want %d", n, len(data))
	}
}

func TestRingSink_ParsesZapJSON(t *testing.T) {
	sink := NewRingSink(10)

	ts := float64(time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC).Unix())
	writeJSON(t, sink, map[string]any{
		"level":  "warn",
		"ts":     ts,
		"logger": "bot.client",
		"msg":    "refresh failed",
		"status": 403,
		"caller": "client.go:10",
	})

	got := sink.Recent(1)
	if len(got) != 1 {
		t.Fatalf("Recent(1) returned %d entries", len(got))
	}
	e := got[0]
	if e.Level != "WARN" || e.Scope != "bot.client" || e.Message != "refresh failed" {
		t.Errorf("parsed entry = %+v", e)
	}
	if e.Timestamp.Unix() != int64(ts) {
		t.Errorf("Timestamp = %v, want unix %d", e.Timestamp, int64(ts))
	}
	if _, ok := e.Fields["caller"]; ok {
		t.Error("caller should be stripped from fields")
	}
	if e.Fields["status"] != float64(403) {
		t.Errorf("Fields[status] = %v, want 403", e.Fields["status"])
	}
}

func TestRingSink_DropsGarbage(t *testing.T) {
	sink := NewRingSink(4)
	n, err := sink.Write([]byte("not json"))
	if err != nil || n != len("not json") {
		t.Errorf("Write(garbage) = %d, %v", n, err)
	}
	if got := sink.Recent(0); len(got) != 0 {
		t.Errorf("Recent() = %v, want empty", got)
	}
}

func TestRingSink_Wraps(t *testing.T) {
	sink := NewRingSink(3)
	for i := range 5 {
		sink.Add(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	got := sink.Recent(0)
	want := []string{"m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("Recent(0) returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Message != want[i] {
			t.Errorf("Recent(0)[%d] = %q, want %q", i, got[i].Message, want[i])
		}
	}

	last := sink.Recent(2)
	if len(last) != 2 || last[0].Message != "m3" || last[1].Message != "m4" {
		t.Errorf("Recent(2) = %v", last)
	}
}

func TestRingSink_PartiallyFilled(t *testing.T) {
	sink := NewRingSink(5)
	sink.Add(LogEntry{Message: "a"})
	sink.Add(LogEntry{Message: "b"})

	got := sink.Recent(10)
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "b" {
		t.Errorf("Recent(10) = %v", got)
	}
}
