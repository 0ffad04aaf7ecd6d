package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects how the root logger writes: level threshold, text or json
// format, and an optional file that receives a copy of every record.
type Options struct {
	Level  string
	Format string
	File   string
}

// New builds the root logger. The returned logger is threaded explicitly into
// every component; there is no package-level logger state.
func New(opts Options) (zerolog.Logger, error) {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "text":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	case "json":
		out = os.Stderr
	default:
		return zerolog.Nop(), fmt.Errorf("invalid --log-format %q (expected: text|json)", opts.Format)
	}

	if opts.File != "" {
		f, ferr := openLogFile(opts.File)
		if ferr != nil {
			return zerolog.Nop(), ferr
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, nil
}

// Component tags a logger with the component name carried on every record.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid --log-level %q (expected: debug|info|warn|error)", level)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
