package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"connection timed out",
	"bad connection",
	"invalid connection",
	"closed network connection",
	"server closed",
	"eof",
}

// ReconnectPlugin pings the pool before each statement and waits for the
// database to come back when the connection was lost.
type ReconnectPlugin struct {
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	reconnects atomic.Int64
}

// NewReconnectPlugin creates a plugin with three linear-backoff retries.
func NewReconnectPlugin(logger *slog.Logger) *ReconnectPlugin {
	return &ReconnectPlugin{
		logger:     logger,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
}

// Name implements gorm.Plugin.
func (p *ReconnectPlugin) Name() string {
	return "reconnect_plugin"
}

// Initialize implements gorm.Plugin.
func (p *ReconnectPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name     string
		register func() error
	}{
		{"query", func() error { return cb.Query().Before("gorm:query").Register("reconnect:before_query", p.beforeStatement) }},
		{"create", func() error { return cb.Create().Before("gorm:create").Register("reconnect:before_create", p.beforeStatement) }},
		{"update", func() error { return cb.Update().Before("gorm:update").Register("reconnect:before_update", p.beforeStatement) }},
		{"delete", func() error { return cb.Delete().Before("gorm:delete").Register("reconnect:before_delete", p.beforeStatement) }},
		{"raw", func() error { return cb.Raw().Before("gorm:raw").Register("reconnect:before_raw", p.beforeStatement) }},
	}

	for _, hook := range hooks {
		if err := hook.register(); err != nil {
			return err
		}
	}
	return nil
}

// Reconnects returns the number of successful recoveries.
func (p *ReconnectPlugin) Reconnects() int64 {
	return p.reconnects.Load()
}

func (p *ReconnectPlugin) beforeStatement(db *gorm.DB) {
	// Inside a transaction the connection is pinned; pinging the pool is useless.
	if _, inTx := db.Statement.ConnPool.(*sql.Tx); inTx {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if err := sqlDB.PingContext(ctx); err != nil && isConnectionError(err) {
		p.logger.Warn("database connection lost, attempting to reconnect", slog.String("error", err.Error()))
		if !p.waitForDatabase(ctx, sqlDB) {
			p.logger.Error("database reconnection failed after retries", slog.Int("attempts", p.maxRetries))
		}
	}
}

func (p *ReconnectPlugin) waitForDatabase(ctx context.Context, sqlDB *sql.DB) bool {
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.retryDelay * time.Duration(attempt)):
		}

		if err := sqlDB.PingContext(ctx); err == nil {
			total := p.reconnects.Add(1)
			p.logger.Info("database reconnection successful",
				slog.Int("attempt", attempt),
				slog.Int64("total_reconnects", total),
			)
			return true
		}
	}
	return false
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
