package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger forwards gorm's diagnostics to a log.Logger. Queries are
// traced at debug level, slow ones and failures are raised.
type gormLogger struct {
	logger log.Logger
	level  gormlogger.LogLevel
}

func newGormLogger(l log.Logger) gormlogger.Interface {
	return &gormLogger{logger: l, level: gormlogger.Warn}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.logger.Error(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.logger.Error("query failed", err, "sql", sql, "rows", rows, log.DurationMsKey, elapsed.Milliseconds())
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.logger.Warn("slow query", "sql", sql, "rows", rows, log.DurationMsKey, elapsed.Milliseconds())
	case g.logger.Enabled(ctx, log.LevelDebug):
		sql, rows := fc()
		g.logger.Debug("query", "sql", sql, "rows", rows, log.DurationMsKey, elapsed.Milliseconds())
	}
}
