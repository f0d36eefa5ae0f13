// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"photoagent/internal/config"
)

// Setup installs the global logger. When cfg.File is set, or when toFile is
// requested by a terminal UI, logs go to a file so they do not corrupt the
// screen. The returned closer releases the file.
func Setup(cfg config.LogConfig, fallbackDir string, toFile bool) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	path := strings.TrimSpace(cfg.File)
	if path == "" && toFile {
		path = filepath.Join(fallbackDir, "logs", "photoagent.log")
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: path != ""})
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
