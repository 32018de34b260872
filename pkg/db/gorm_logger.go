package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vocadrill/vocadrill/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	slowQueryThreshold  = 200 * time.Millisecond
	defaultGormLogLevel = gormlogger.Warn
)

// gormSlogLogger routes gorm's logging interface into pkg/logger.
type gormSlogLogger struct {
	logLevel gormlogger.LogLevel
}

func newGormLogger(levelValue string) (gormlogger.Interface, error) {
	level := defaultGormLogLevel
	var levelErr error
	if strings.TrimSpace(levelValue) != "" {
		level, levelErr = parseGormLogLevel(levelValue)
	}
	return &gormSlogLogger{logLevel: level}, levelErr
}

func (l *gormSlogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormSlogLogger{logLevel: level}
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, gormlogger.Info, slog.LevelInfo, fmt.Sprintf(msg, data...))
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, gormlogger.Warn, slog.LevelWarn, fmt.Sprintf(msg, data...))
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, gormlogger.Error, slog.LevelError, fmt.Sprintf(msg, data...))
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel == gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log(ctx, gormlogger.Error, slog.LevelError, "gorm query error",
			"elapsed", elapsed, "rows", rows, "sql", sql, "error", err)
	case elapsed > slowQueryThreshold:
		l.log(ctx, gormlogger.Warn, slog.LevelWarn, "gorm slow query",
			"elapsed", elapsed, "rows", rows, "sql", sql, "threshold", slowQueryThreshold)
	default:
		l.log(ctx, gormlogger.Info, slog.LevelInfo, "gorm query",
			"elapsed", elapsed, "rows", rows, "sql", sql)
	}
}

func (l *gormSlogLogger) log(ctx context.Context, level gormlogger.LogLevel, slogLevel slog.Level, msg string, args ...any) {
	if l.logLevel == gormlogger.Silent || l.logLevel < level {
		return
	}
	switch level {
	case gormlogger.Error:
		if !logger.Enabled(logger.ERROR) {
			return
		}
	case gormlogger.Warn:
		if !logger.Enabled(logger.WARN) {
			return
		}
	default:
		if !logger.Enabled(logger.INFO) {
			return
		}
	}
	logger.Logger.Log(ctx, slogLevel, msg, args...)
}

func parseGormLogLevel(value string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return defaultGormLogLevel, fmt.Errorf("invalid gorm log level %q", value)
	}
}
