// Package logging builds the process logger with token redaction.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds configuration for the structured logger
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Writer io.Writer
}

// sensitiveKeys are redacted when an attribute key equals one of them
var sensitiveKeys = map[string]bool{
	"access":  true,
	"refresh": true,
	"token":   true,
	"pwd":     true,
}

// sensitivePatterns are redacted when an attribute key contains them
var sensitivePatterns = []string{
	"_token",
	"password",
	"passphrase",
	"secret",
	"authorization",
	"bearer",
	"cookie",
}

// ParseLevel maps a level name to a slog level, defaulting to info
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

// NewHandler creates a JSON or text handler that redacts credential fields
func NewHandler(cfg Config) slog.Handler {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init creates the logger and installs it as the slog default
func Init(cfg Config) *slog.Logger {
	logger := slog.New(NewHandler(cfg))
	slog.SetDefault(logger)
	return logger
}

func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	for _, pattern := range sensitivePatterns {
		if strings.Contains(key, pattern) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}
