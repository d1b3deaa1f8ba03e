package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts Logger to gorm's logger.Interface. SQL statements are
// logged at debug level; slow queries and query errors at warning level.
type GormLogger struct {
	log           *Logger
	slowThreshold time.Duration
}

// NewGormLogger creates a gorm logger. A zero slowThreshold disables slow
// query warnings.
func NewGormLogger(log *Logger, slowThreshold time.Duration) *GormLogger {
	if log == nil {
		log = NewNop()
	}
	return &GormLogger{log: log.With("module", "gorm"), slowThreshold: slowThreshold}
}

// LogMode returns the adapter itself; the level is owned by Logger.
func (g *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return g
}

func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	g.log.Debug(msg, data...)
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	g.log.Warning(msg, data...)
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	g.log.Error(msg, data...)
}

// Trace logs one executed statement.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Warning("query error: %v [%s] rows=%d sql=%s", err, elapsed, rows, sql)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		sql, rows := fc()
		g.log.Warning("slow query: %s > %s rows=%d sql=%s", elapsed, g.slowThreshold, rows, sql)
	default:
		if g.log.Enabled(slog.LevelDebug) {
			sql, rows := fc()
			g.log.Debug("[%s] rows=%d sql=%s", elapsed, rows, sql)
		}
	}
}
