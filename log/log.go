package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so callers can hand out the embedded
// logger to components while keeping a single construction point.
type Logger struct {
	zerolog.Logger
}

// New builds the process-wide logger. Unknown levels fall back to info.
func New(level string, pretty bool) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(os.Stdout)
	}

	return Logger{l.Level(lvl).With().Timestamp().Logger()}
}

// Nop returns a disabled logger for tests.
func Nop() Logger {
	return Logger{zerolog.Nop()}
}
