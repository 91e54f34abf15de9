// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"sync"
	"time"
)

// RingSink implements zapcore.WriteSyncer and keeps the most recent parsed
// entries in a fixed-size ring. Older entries are overwritten.
type RingSink struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingSink creates a sink that remembers up to size entries.
func NewRingSink(size int) *RingSink {
	if size < 1 {
		size = 1
	}
	return &RingSink{entries: make([]LogEntry, size)}
}

// Write implements io.Writer. Unparseable input is dropped without error
// so that logging never fails because of the ring.
func (s *RingSink) Write(p []byte) (int, error) {
	entry, err := ParseEntry(p)
	if err != nil {
		return len(p), nil
	}
	s.Add(entry)
	return len(p), nil
}

// Add stores an entry directly.
func (s *RingSink) Add(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
}

// Sync implements zapcore.WriteSyncer. No-op for the ring.
func (s *RingSink) Sync() error {
	return nil
}

// Recent returns up to n entries, oldest first. n <= 0 returns everything held.
func (s *RingSink) Recent(n int) []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.next
	if s.full {
		count = len(s.entries)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]LogEntry, 0, n)
	start := s.next - n
	if start < 0 {
		start += len(s.entries)
	}
	for i := range n {
		out = append(out, s.entries[(start+i)%len(s.entries)])
	}
	return out
}

// ParseEntry converts one JSON line written by the file or ring core into
// a LogEntry.
func ParseEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Fields:    make(map[string]any),
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}

	if level, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(level)
		delete(raw, "level")
	} else {
		entry.Level = "INFO"
	}

	if logger, ok := raw["logger"].(string); ok {
		entry.Scope = logger
		delete(raw, "logger")
	} else {
		entry.Scope = "plugin"
	}

	// Parse timestamp if present, preserving nanosecond precision
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		entry.Timestamp = time.Unix(sec, nsec)
		delete(raw, "ts")
	}

	delete(raw, "caller")
	delete(raw, "stacktrace")

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}
