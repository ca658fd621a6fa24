package http

import (
	"context"
	"crypto/rand"
	stdhttp "net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const (
	sessionCookieName = "wiki_session"
	sessionLifetime   = 7 * 24 * time.Hour
)

type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// SessionManager issues and verifies the signed session cookie.
type SessionManager struct {
	secret []byte
	now    func() time.Time
}

// NewSessionManager builds a session manager around an HMAC secret. An
// empty secret gets a random one, at the cost of sessions not surviving a
// restart.
func NewSessionManager(secret string) (*SessionManager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, eris.Wrap(err, "generating session secret")
		}
	}

	return &SessionManager{secret: key, now: time.Now}, nil
}

// Issue signs a session token for the user and sets it as a cookie.
func (m *SessionManager) Issue(w stdhttp.ResponseWriter, username string) error {
	if username == "" {
		return eris.New("username is required")
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
		},
		Username: username,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return eris.Wrap(err, "signing session token")
	}

	stdhttp.SetCookie(w, &stdhttp.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionLifetime / time.Second),
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
	})

	return nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w stdhttp.ResponseWriter) {
	stdhttp.SetCookie(w, &stdhttp.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
	})
}

// Middleware decodes the session cookie, if any, and stores the username
// in the request context. Invalid or expired tokens are treated as
// anonymous rather than rejected.
func (m *SessionManager) Middleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, eris.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid || claims.Username == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), usernameContextKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
