package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the wiki server.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	HomePageName  string
	AuthSecret    string
	CSRFKey       string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration
}

const (
	defaultDBPath        = "./data/wiki.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultHomePageName  = "home-page"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		HomePageName:  getEnv("HOME_PAGE", defaultHomePageName),
		AuthSecret:    os.Getenv("AUTH_SECRET"),
		CSRFKey:       os.Getenv("CSRF_KEY"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
	}

	if strings.TrimSpace(cfg.HomePageName) == "" {
		return nil, eris.New("HOME_PAGE must not be blank")
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
