package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New creates a structured slog.Logger writing human readable lines to stdout
// and JSON lines to dir/info.log, with errors also copied to dir/error.log.
// An empty dir logs to the console only.
func New(level, dir string) (*slog.Logger, error) {
	handlerLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel})
	if dir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	infoFile, err := openLog(dir, "info.log")
	if err != nil {
		return nil, err
	}
	errorFile, err := openLog(dir, "error.log")
	if err != nil {
		return nil, err
	}

	handler := &MultiLevelHandler{
		consoleHandler:   console,
		infoFileHandler:  slog.NewJSONHandler(infoFile, &slog.HandlerOptions{Level: handlerLevel}),
		errorFileHandler: slog.NewJSONHandler(errorFile, &slog.HandlerOptions{Level: slog.LevelError}),
		level:            handlerLevel,
	}
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openLog(dir, name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// MultiLevelHandler fans records out to the console and log files.
type MultiLevelHandler struct {
	consoleHandler   slog.Handler
	infoFileHandler  slog.Handler
	errorFileHandler slog.Handler
	level            slog.Leveler
}

func (h *MultiLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *MultiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.consoleHandler.Handle(ctx, r); err != nil {
		return err
	}
	if err := h.infoFileHandler.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelError {
		return h.errorFileHandler.Handle(ctx, r)
	}
	return nil
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MultiLevelHandler{
		consoleHandler:   h.consoleHandler.WithAttrs(attrs),
		infoFileHandler:  h.infoFileHandler.WithAttrs(attrs),
		errorFileHandler: h.errorFileHandler.WithAttrs(attrs),
		level:            h.level,
	}
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	return &MultiLevelHandler{
		consoleHandler:   h.consoleHandler.WithGroup(name),
		infoFileHandler:  h.infoFileHandler.WithGroup(name),
		errorFileHandler: h.errorFileHandler.WithGroup(name),
		level:            h.level,
	}
}

func parseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, errors.New("invalid log level")
	}
}
