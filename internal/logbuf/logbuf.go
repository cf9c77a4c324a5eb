// Package logbuf keeps the most recent log records in memory so the
// operator API can serve them without shipping logs anywhere.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Record is one captured log record.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring is a fixed-size ring of log records. Writers overwrite the oldest
// record once the ring is full.
type Ring struct {
	mu      sync.Mutex
	records []Record
	pos     int
	count   int
}

// NewRing creates a ring holding up to size records.
func NewRing(size int) *Ring {
	return &Ring{records: make([]Record, size)}
}

// Append stores one record, evicting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	r.records[r.pos] = rec
	r.pos = (r.pos + 1) % len(r.records)
	if r.count < len(r.records) {
		r.count++
	}
	r.mu.Unlock()
}

// Recent returns up to limit records at or above minLevel, oldest first.
// limit <= 0 means no limit.
func (r *Ring) Recent(minLevel slog.Level, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if r.count == len(r.records) {
		start = r.pos
	}
	var out []Record
	for i := 0; i < r.count; i++ {
		rec := r.records[(start+i)%len(r.records)]
		if levelOf(rec.Level) < minLevel {
			continue
		}
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelOf(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
