package log

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the application logger: JSON output, nanosecond
// timestamps, level parsed from configuration. An empty level means info.
func NewLogger(level string) (*logrus.Logger, error) {
	parsed := logrus.InfoLevel
	if level != "" {
		var err error
		parsed, err = logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, eris.Wrapf(err, "invalid log level: %s", level)
		}
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetLevel(parsed)

	return logger, nil
}
