package db

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewGormLogger adapts a logrus logger to gorm's logging interface so SQL
// errors and slow queries land in the same JSON stream as the rest of the
// application.
func NewGormLogger(base *logrus.Logger) gormlogger.Interface {
	return &gormLogger{base: base}
}

type gormLogger struct {
	base *logrus.Logger
}

var _ gormlogger.Interface = (*gormLogger)(nil)

// LogMode is a no-op; verbosity follows the logrus level instead.
func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.base.Infof(msg, args...)
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.base.Warnf(msg, args...)
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.base.Errorf(msg, args...)
}

// Trace reports failed and slow statements. Not-found results are part of
// the repositories' normal control flow and stay quiet.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !eris.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		l.base.WithFields(logrus.Fields{
			"sql":   sql,
			"rows":  rows,
			"error": err.Error(),
		}).Error("query failed")
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		l.base.WithFields(logrus.Fields{
			"sql":         sql,
			"rows":        rows,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}).Warn("slow query")
	}
}
