// Package logging builds the zerolog root logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var pid = os.Getpid()

// New returns the root logger. level is one of zerolog's level names
// ("debug", "info", ...). console selects the human readable writer.
func New(level string, console bool) (zerolog.Logger, error) {
	return NewWithWriter(level, console, os.Stderr)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(level string, console bool, w io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if console {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05.0000",
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				"component",
				zerolog.MessageFieldName,
			},
			FieldsExclude: []string{"component"},
		}
	}
	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Int("pid", pid).
		Logger(), nil
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Component derives a child logger tagged with the component name.
func Component(root zerolog.Logger, name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
