package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/flemzord/hlbroker/internal/config"
	"github.com/flemzord/hlbroker/internal/security"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger from cfg. Records go to stderr and,
// when cfg.File is set, to a rotating file. Every record passes through the
// redactor. The returned closer releases the log file.
func NewLogger(cfg config.LogConfig, stderr io.Writer, redactor *security.Redactor) (*slog.Logger, io.Closer) {
	if stderr == nil {
		stderr = os.Stderr
	}
	w := stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(stderr, file)
		closer = file
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	for _, lit := range cfg.Redact {
		redactor.AddLiteral(lit)
	}
	return slog.New(security.NewRedactingHandler(h, redactor)), closer
}

// ParseLevel maps a config level name to a slog level. Unknown names mean
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
