package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger from level/format strings and
// attaches a hook that mirrors every entry into buf.
func Setup(level, format string, buf *Buffer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if buf != nil {
		log.AddHook(NewHook(buf))
	}
	return nil
}

// Hook adapts Buffer to a logrus hook so the console can show recent activity
type Hook struct {
	buf *Buffer
}

// NewHook creates a hook writing into buf
func NewHook(buf *Buffer) *Hook {
	return &Hook{buf: buf}
}

// Levels reports the levels captured by the hook
func (h *Hook) Levels() []log.Level {
	return log.AllLevels
}

// Fire copies the entry into the buffer
func (h *Hook) Fire(e *log.Entry) error {
	var fields map[string]string
	if len(e.Data) > 0 {
		fields = make(map[string]string, len(e.Data))
		for k, v := range e.Data {
			fields[k] = fmt.Sprint(v)
		}
	}

	h.buf.Add(Entry{
		Timestamp: e.Time,
		Level:     normalizeLevel(e.Level),
		Message:   e.Message,
		Fields:    fields,
	})
	return nil
}

func normalizeLevel(l log.Level) string {
	switch l {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return "error"
	case log.WarnLevel:
		return "warn"
	case log.DebugLevel, log.TraceLevel:
		return "debug"
	default:
		return "info"
	}
}

// Discard silences the standard logger; used by tests that only care about the buffer
func Discard() {
	log.SetOutput(io.Discard)
}
