package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// Levels forwarded to Sentry; anything below Error stays local.
var sentryHookLevels = []logrus.Level{
	logrus.ErrorLevel,
	logrus.FatalLevel,
	logrus.PanicLevel,
}

// SentrySettings holds the values needed to bootstrap error reporting.
type SentrySettings struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry builds a Sentry hub and hooks it into the logger so Error+
// entries are reported. An empty DSN disables reporting and the returned
// flush func is a no-op. Callers defer flush before exit.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     settings.Release,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "error initializing sentry client")
	}

	logger.AddHook(sentrylogrus.NewLogHookFromClient(sentryHookLevels, client))

	hub := sentry.NewHub(client, sentry.NewScope())
	flush := func() { hub.Flush(sentryFlushTimeout) }

	return hub, flush, nil
}
