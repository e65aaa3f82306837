package telemetry

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// JSONLogger writes one JSON object per line. Session logs are append-heavy
// and read by humans or jq, never by the app itself.
type JSONLogger struct {
	mu  sync.Mutex
	w   io.WriteCloser
	min Level
}

func NewJSONLogger(path string) (*JSONLogger, error) {
	if path == "" {
		return &JSONLogger{w: nopCloser{Writer: io.Discard}, min: LevelInfo}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &JSONLogger{w: f, min: LevelInfo}, nil
}

// SetMinLevel adjusts the gate. Debug entries are dropped unless the gate
// is LevelDebug.
func (l *JSONLogger) SetMinLevel(min Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min = min
}

func (l *JSONLogger) Debug(msg string, fields map[string]any) {
	l.log(LevelDebug, "debug", msg, fields)
}

func (l *JSONLogger) Info(msg string, fields map[string]any) {
	l.log(LevelInfo, "info", msg, fields)
}

func (l *JSONLogger) Error(msg string, fields map[string]any) {
	l.log(LevelError, "error", msg, fields)
}

func (l *JSONLogger) log(level Level, name string, msg string, fields map[string]any) {
	if l == nil || l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": name,
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	b, _ := json.Marshal(entry)
	_, _ = l.w.Write(append(b, '\n'))
}

func (l *JSONLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
