package db

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpenAcceptsLogrusBackedLogger(t *testing.T) {
	t.Parallel()

	base := logrus.New()
	base.SetOutput(io.Discard)

	conn, err := Open(Options{
		Path:   filepath.Join(t.TempDir(), "adapter.db"),
		Logger: NewGormLogger(base),
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = Close(conn) })

	var one int
	if err := conn.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("query through adapted logger failed: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
}

func TestGormLoggerReportsFailedQueries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	adapted := NewGormLogger(base)
	adapted.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT broken", 0
	}, eris.New("syntax error"))

	logged := buf.String()
	if !strings.Contains(logged, "SELECT broken") {
		t.Fatalf("expected failed statement in log output, got %q", logged)
	}
	if !strings.Contains(logged, "query failed") {
		t.Fatalf("expected failure message in log output, got %q", logged)
	}
}

func TestGormLoggerStaysQuietOnNotFound(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)

	adapted := NewGormLogger(base)
	adapted.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM pages WHERE name = ?", 0
	}, gormlogger.ErrRecordNotFound)

	if buf.Len() != 0 {
		t.Fatalf("expected no output for not-found results, got %q", buf.String())
	}
}
