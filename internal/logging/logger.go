package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation caps the on-disk footprint of the log file. Zero values fall
// back to the package defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Config holds logger configuration
type Config struct {
	Level    string
	LogFile  string
	NoColor  bool
	Rotation Rotation
}

// NewLogger builds the process logger: human-readable console output on
// stderr, plus a rotated file copy when a log file is configured. A log
// directory that cannot be created silently drops the file output rather
// than failing the whole command.
func NewLogger(cfg Config) *zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	out := io.Writer(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor,
	})
	if fw := fileWriter(cfg.LogFile, cfg.Rotation); fw != nil {
		out = zerolog.MultiLevelWriter(out, fw)
	}

	logger := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return &logger
}

// fileWriter returns a rotating writer for path, or nil when file logging
// is disabled or the directory cannot be created
func fileWriter(path string, rot Rotation) io.Writer {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(rot.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(rot.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(rot.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewTestLogger creates a logger for testing that writes to a buffer
func NewTestLogger(w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}
