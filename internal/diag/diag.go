package diag

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Field is one structured key/value attached to a diagnostic message.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Collector receives pipeline diagnostics. Stages take one as a parameter
// instead of logging through global state.
type Collector interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Logger is a Collector backed by zerolog.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger writes to w at the given level ("debug", "info", "warn", ...).
// console selects the human-readable writer instead of JSON lines.
func NewLogger(w io.Writer, level string, console bool) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &Logger{zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}, nil
}

func (l *Logger) Info(msg string, fields ...Field) {
	withFields(l.zl.Info(), fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	withFields(l.zl.Warn(), fields).Msg(msg)
}

func withFields(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

type nop struct{}

func (nop) Info(string, ...Field) {}
func (nop) Warn(string, ...Field) {}

// Nop discards everything.
var Nop Collector = nop{}

// Level of a recorded entry.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Entry is one message captured by a Recorder.
type Entry struct {
	Level  Level
	Msg    string
	Fields map[string]any
}

// Recorder keeps every message in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Info(msg string, fields ...Field) { r.add(LevelInfo, msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field) { r.add(LevelWarn, msg, fields) }

func (r *Recorder) add(lvl Level, msg string, fields []Field) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: lvl, Msg: msg, Fields: m})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns the first entry with the given message.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Tee fans each message out to every collector.
func Tee(cs ...Collector) Collector {
	return tee(cs)
}

type tee []Collector

func (t tee) Info(msg string, fields ...Field) {
	for _, c := range t {
		c.Info(msg, fields...)
	}
}

func (t tee) Warn(msg string, fields ...Field) {
	for _, c := range t {
		c.Warn(msg, fields...)
	}
}
