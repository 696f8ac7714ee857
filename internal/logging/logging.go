// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/config"
)

// Logger is a zerolog logger plus the file it writes to
type Logger struct {
	zerolog.Logger
	file *os.File
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New returns a logger writing to cfg.File. When stderr is non-nil and the
// level is debug, events are mirrored there in console form.
func New(cfg config.LoggingConfig, stderr io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	var writers []io.Writer
	l := &Logger{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file: %w", err)
		}
		l.file = f
		if cfg.Format == "console" {
			writers = append(writers, zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339})
		} else {
			writers = append(writers, f)
		}
	}
	if stderr != nil && level == zerolog.DebugLevel {
		writers = append(writers, zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen})
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Nop returns a logger that drops everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
