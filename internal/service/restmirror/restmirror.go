// Package restmirror is the optional, non-core REST mirror of the local
// socket protocol, gated on HTTP_PORT: a chi router with a request-ID,
// logging, panic-recovery, and timeout middleware chain in front of the
// five mapping/navigation methods.
package restmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/telemetry"
)

// Handler is the subset of *service.App this package calls into, kept
// narrow so restmirror doesn't need to import the service package's
// internals and so it's trivially testable with a fake.
type Handler interface {
	Invoke(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Server is the REST mirror's HTTP surface.
type Server struct {
	router  chi.Router
	handler Handler
	logger  *zap.Logger
	srv     *http.Server
}

// New constructs a Server wired to handler, listening on the given port.
func New(handler Handler, port int, logger *zap.Logger) *Server {
	s := &Server{handler: handler, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", telemetry.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/map", s.call("map"))
		r.Post("/query", s.call("query"))
		r.Post("/pathfind", s.call("pathfind"))
		r.Post("/similar", s.call("similar"))
		r.Get("/status", s.call("status"))
	})

	s.router = r
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: r}
	return s
}

// Serve blocks accepting connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close shuts the HTTP server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) call(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params json.RawMessage
		if r.Method == http.MethodPost && r.ContentLength != 0 {
			body, err := decodeBody(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			params = body
		}

		result, err := s.handler.Invoke(r.Context(), method, params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func decodeBody(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return raw, nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
