package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultRingSize is how many recent entries are kept when no size is given.
const DefaultRingSize = 50

// Entry is one buffered log record as exposed by the debug endpoint.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Logger    string         `json:"logger,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Ring is a fixed-capacity circular buffer of log entries. Once full, each
// new entry overwrites the oldest one.
type Ring struct {
	mu    sync.Mutex
	buf   []Entry
	next  int
	count int
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Entry, size)}
}

// Add records e, evicting the oldest entry when the ring is full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Entries returns the buffered entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// RingCore is a zapcore.Core that copies every entry it accepts into a Ring.
type RingCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

// NewRingCore returns a core writing entries at or above level into ring.
func NewRingCore(ring *Ring, level zapcore.LevelEnabler) *RingCore {
	return &RingCore{LevelEnabler: level, ring: ring}
}

// With implements zapcore.Core.
func (c *RingCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &RingCore{
		LevelEnabler: c.LevelEnabler,
		ring:         c.ring,
		fields:       make([]zapcore.Field, 0, len(c.fields)+len(fields)),
	}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

// Check implements zapcore.Core.
func (c *RingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *RingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	e := Entry{
		Timestamp: ent.Time.UTC(),
		Level:     ent.Level.String(),
		Logger:    ent.LoggerName,
		Message:   ent.Message,
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.ring.Add(e)
	return nil
}

// Sync implements zapcore.Core.
func (c *RingCore) Sync() error { return nil }
