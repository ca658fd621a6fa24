package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const rateLimitMessage = "You're browsing a bit too quickly. Please wait a moment and try again."

type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(body []byte) (int, error) {
	if rec.status == 0 {
		rec.status = stdhttp.StatusOK
	}
	return rec.ResponseWriter.Write(body)
}

func (s *Server) requestIDMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDContextKey, reqID)
		w.Header().Set("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoveryMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err := eris.Errorf("panic handling request: %v", recovered)
				s.recordError(r.Context(), err, "recovered from handler panic", logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
				})
				stdhttp.Error(w, "Internal Server Error", stdhttp.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if s.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIPFromRequest(r)
		if s.rateLimiter.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if s.logger != nil {
			fields := logrus.Fields{
				"ip":   ip,
				"path": r.URL.Path,
			}
			if requestID := RequestIDFromContext(r.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithFields(fields).Warn("request rate limited")
		}

		w.Header().Set("Retry-After", "1")
		stdhttp.Error(w, rateLimitMessage, stdhttp.StatusTooManyRequests)
	})
}

func (s *Server) loggingMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if s.logger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"remote_addr": r.RemoteAddr,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}

		if requestID := RequestIDFromContext(r.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		s.logger.WithFields(fields).Info("handled request")
	})
}

func clientIPFromRequest(r *stdhttp.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
