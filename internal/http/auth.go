package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"tinywiki/app/internal/wiki"
)

func (s *Server) loginPageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.renderAuth(w, r, authData{Title: "Login", IsLogin: true})
}

func (s *Server) loginHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, stdhttp.StatusBadRequest, "The submitted form could not be read.")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if errs := validateCredentials(username, password); len(errs) > 0 {
		s.renderAuth(w, r, authData{Title: "Login", IsLogin: true, Username: username, Errors: errs})
		return
	}

	if ok, _, err := s.store.CanLogin(r.Context(), username, password); !ok {
		s.handleAuthFailure(w, r, authData{Title: "Login", IsLogin: true, Username: username}, err)
		return
	}

	if err := s.sessions.Issue(w, username); err != nil {
		s.recordError(r.Context(), err, "issuing session", logrus.Fields{"username": username})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	if s.logger != nil {
		s.logger.WithField("username", username).Info("user logged in")
	}

	stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
}

func (s *Server) registerPageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.renderAuth(w, r, authData{Title: "Register"})
}

func (s *Server) registerHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, stdhttp.StatusBadRequest, "The submitted form could not be read.")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirmPassword")

	errs := validateCredentials(username, password)
	if password != confirm {
		errs = append(errs, "Passwords do not match")
	}
	if len(errs) > 0 {
		s.renderAuth(w, r, authData{Title: "Register", Username: username, Errors: errs})
		return
	}

	if ok, err := s.store.Register(r.Context(), username, password); !ok {
		s.handleAuthFailure(w, r, authData{Title: "Register", Username: username}, err)
		return
	}

	if s.logger != nil {
		s.logger.WithField("username", username).Info("user registered")
	}

	stdhttp.Redirect(w, r, "/auth/login", stdhttp.StatusFound)
}

func (s *Server) logoutHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.sessions.Clear(w)

	target := r.Referer()
	if target == "" {
		target = "/"
	}

	stdhttp.Redirect(w, r, target, stdhttp.StatusFound)
}

func (s *Server) renderAuth(w stdhttp.ResponseWriter, r *stdhttp.Request, data authData) {
	data.CSRFField = csrf.TemplateField(r)

	if err := s.renderer.Render(w, "auth", data); err != nil {
		s.recordError(r.Context(), err, "rendering auth page", nil)
	}
}

// handleAuthFailure maps store sentinels onto form messages and treats
// anything else as a server fault.
func (s *Server) handleAuthFailure(w stdhttp.ResponseWriter, r *stdhttp.Request, data authData, err error) {
	message, known := authErrorMessage(err)
	if !known {
		s.recordError(r.Context(), err, "authenticating user", logrus.Fields{"username": data.Username})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	data.Errors = append(data.Errors, message)
	s.renderAuth(w, r, data)
}

func authErrorMessage(err error) (string, bool) {
	switch {
	case eris.Is(err, wiki.ErrNoSuchUser):
		return "No such user exists", true
	case eris.Is(err, wiki.ErrWrongPassword):
		return "The password is not correct", true
	case eris.Is(err, wiki.ErrUsernameTaken):
		return "This username is already taken", true
	default:
		return "", false
	}
}

func validateCredentials(username, password string) []string {
	var errs []string

	if username == "" {
		errs = append(errs, "Username is required")
	}
	if len(password) < minPasswordLength {
		errs = append(errs, "Password must be at least 8 characters long")
	}

	return errs
}
