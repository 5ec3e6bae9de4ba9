package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/api"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/auth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/context_key"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/metrics"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// Config holds what the HTTP server serves.
type Config struct {
	ServerURL string
	API       *api.API
	// GraphQL serves /graphql; nil disables the endpoint.
	GraphQL http.Handler
	// Limiter guards /api/auth; nil builds one allowing AuthRateLimit
	// requests per minute per IP.
	Limiter       *RateLimiter
	AuthRateLimit int
	// Health reports whether the backing services are reachable.
	Health func(ctx context.Context) error
}

// jwtMiddleware is a middleware function that performs JWT validation.
//
// It reads the bearer token from the Authorization header. A valid access
// token puts the user's id and role into the request's context under
// contextKey.UserIDKey and contextKey.RoleKey. Any failure, including an
// expired token, puts the error under contextKey.JwtErrorKey instead.
//
// The function never stops the request; the handlers decide what an
// anonymous request may do.
func jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, errors.New("authorization header must use the Bearer scheme"))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		claims, err := auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("rejected bearer token", "path", r.URL.Path, "err", err)
			ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextKey.WithUser(r.Context(), claims.ID, claims.Role)))
	})
}

// recoveryMiddleware recovers from panics and answers with a generic error.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "method", r.Method, "path", r.URL.Path, "panic", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog feeds gorilla's access log parameters to the structured logger.
func accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	logger.Info("request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"bytes", p.Size,
		"remote", p.Request.RemoteAddr,
		"duration", time.Since(p.TimeStamp).String(),
	)
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "err", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// NewRouter builds the handler tree: recovery, CORS and access logging
// around the router, metrics and JWT parsing on every route.
func NewRouter(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler, jwtMiddleware)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", health(cfg.Health)).Methods(http.MethodGet)

	if cfg.GraphQL != nil {
		r.Handle("/graphql", cfg.GraphQL)
		r.Handle("/", playground.Handler("GraphQL playground", "/graphql"))
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.AuthRateLimit)
	}
	cfg.API.Routes(r, limiter.Handler)

	r.NotFoundHandler = jsonError(http.StatusNotFound, "not found")
	r.MethodNotAllowedHandler = jsonError(http.StatusMethodNotAllowed, "method not allowed")

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r)

	return recoveryMiddleware(handlers.CustomLoggingHandler(io.Discard, corsRouter, accessLog))
}

func jsonError(status int, msg string) http.Handler {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(body)
	})
}

// Start serves the API on the host of cfg.ServerURL until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, cfg Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      NewRouter(cfg),
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
