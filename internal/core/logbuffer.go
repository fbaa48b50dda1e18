package core

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogRing keeps the most recent log lines of a running server so they can
// be fetched over the API. It expects zerolog JSON lines; anything else is
// kept verbatim as the message.
type LogRing struct {
	mu      sync.RWMutex
	entries []LogEntry
	pos     int
	full    bool
	now     func() time.Time
}

// NewLogRing creates a ring holding up to size entries (500 if size <= 0).
func NewLogRing(size int) *LogRing {
	if size <= 0 {
		size = 500
	}
	return &LogRing{entries: make([]LogEntry, size), now: time.Now}
}

// Write implements io.Writer.
func (r *LogRing) Write(p []byte) (int, error) {
	entry := r.parse(p)

	r.mu.Lock()
	r.entries[r.pos] = entry
	r.pos = (r.pos + 1) % len(r.entries)
	if r.pos == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return len(p), nil
}

func (r *LogRing) parse(p []byte) LogEntry {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return LogEntry{
			Timestamp: r.now().UTC(),
			Level:     zerolog.NoLevel.String(),
			Message:   strings.TrimSpace(string(p)),
		}
	}

	e := LogEntry{Timestamp: r.now().UTC()}
	if s, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			e.Timestamp = ts.UTC()
		}
	}
	e.Level, _ = fields[zerolog.LevelFieldName].(string)
	e.Message, _ = fields[zerolog.MessageFieldName].(string)
	e.Component, _ = fields["component"].(string)
	for _, k := range []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, "component"} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

// Recent returns up to n of the newest entries at or above minLevel, oldest
// first. An empty minLevel keeps every entry.
func (r *LogRing) Recent(n int, minLevel string) []LogEntry {
	floor := zerolog.TraceLevel
	if minLevel != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(minLevel)); err == nil {
			floor = lvl
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.pos
	if r.full {
		total = len(r.entries)
	}
	out := []LogEntry{}
	if n <= 0 {
		return out
	}
	// walk newest to oldest, then reverse
	for i := 0; i < total && len(out) < n; i++ {
		idx := (r.pos - 1 - i + len(r.entries)) % len(r.entries)
		e := r.entries[idx]
		if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl < floor {
			continue
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of stored entries.
func (r *LogRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.pos
}
