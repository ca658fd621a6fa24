package http

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"tinywiki/app/internal/wiki"
)

// Options configures the HTTP server wiring.
type Options struct {
	Store        *wiki.Store
	HomePageName string
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	AuthSecret   string
	CSRFKey      string
	Secure       bool
	RateLimiter  RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
	defaultClientTTL         = 10 * time.Minute
)

// Server wires the HTTP transport: router, templates, sessions and the
// content store behind them.
type Server struct {
	router       chi.Router
	handler      stdhttp.Handler
	store        *wiki.Store
	renderer     *Renderer
	sessions     *SessionManager
	homePageName string
	logger       *logrus.Logger
	sentry       *sentry.Hub
	rateLimiter  *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, eris.New("content store is required")
	}

	homePageName := wiki.NormalizeName(opts.HomePageName)
	if homePageName == "" {
		return nil, eris.New("home page name is required")
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, eris.Wrap(err, "building renderer")
	}

	sessions, err := NewSessionManager(opts.AuthSecret)
	if err != nil {
		return nil, eris.Wrap(err, "building session manager")
	}

	settings := opts.RateLimiter
	if settings.RequestsPerSecond <= 0 {
		settings.RequestsPerSecond = defaultRequestsPerSecond
	}
	if settings.Burst <= 0 {
		settings.Burst = defaultBurst
	}
	if settings.ClientTTL <= 0 {
		settings.ClientTTL = defaultClientTTL
	}

	srv := &Server{
		store:        opts.Store,
		renderer:     renderer,
		sessions:     sessions,
		homePageName: homePageName,
		logger:       opts.Logger,
		sentry:       opts.SentryHub,
		rateLimiter:  NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
	}

	srv.router = chi.NewRouter()
	srv.registerMiddlewares()
	srv.registerRoutes()

	srv.handler = srv.router
	if opts.CSRFKey != "" {
		srv.handler = csrf.Protect(
			[]byte(opts.CSRFKey),
			csrf.Path("/"),
			csrf.Secure(opts.Secure),
		)(srv.router)
	}

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerMiddlewares() {
	s.router.Use(
		s.requestIDMiddleware,
		s.recoveryMiddleware,
		s.rateLimitMiddleware,
		s.loggingMiddleware,
		s.sessions.Middleware,
	)
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.homeHandler)
	s.router.Get("/new-page", s.newPageHandler)
	s.router.Get("/edit", s.editHandler)
	s.router.Get("/attachment", s.attachmentHandler)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.loginPageHandler)
		r.Post("/login", s.loginHandler)
		r.Get("/register", s.registerPageHandler)
		r.Post("/register", s.registerHandler)
		r.Post("/logout", s.logoutHandler)
	})

	s.router.Post("/delete-page", s.deletePageHandler)
	s.router.Post("/delete-attachment", s.deleteAttachmentHandler)

	s.router.Get("/{pageName}", s.pageHandler)
	s.router.Post("/{pageName}", s.savePageHandler)
}

// isHomePage reports whether the given name refers to the protected home page.
func (s *Server) isHomePage(name string) bool {
	return strings.EqualFold(wiki.NormalizeName(name), s.homePageName)
}
