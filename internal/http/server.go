package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/cors"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
)

// Ledger is the slice of the ledger service the API drives.
type Ledger interface {
	Create(ctx context.Context, owner core.Owner, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, id string, owner core.Owner, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id string, owner core.Owner) error
	Get(ctx context.Context, id string, owner core.Owner) (core.Transaction, error)
	List(ctx context.Context, owner core.Owner, f core.Filters) ([]core.Transaction, error)
	Summary(ctx context.Context, owner core.Owner, f core.Filters) (core.Summary, error)
}

// Options wires the server's collaborators. Ledger and Resolver are required.
type Options struct {
	Addr        string
	Ledger      Ledger
	Resolver    auth.Resolver
	Ready       func(ctx context.Context) error
	Limiter     ratelimit.Limiter
	Detector    *security.Detector
	CORSOrigins []string
	Logger      *applog.Logger
}

type Server struct {
	http.Server
	ledger   Ledger
	resolver auth.Resolver
	ready    func(ctx context.Context) error
	limiter  ratelimit.Limiter
	detector *security.Detector
	logger   *applog.Logger
	validate *validationHelper

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil || opts.Resolver == nil {
		return nil, errors.New("http server requires a ledger and an identity resolver")
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Detector == nil {
		d, err := security.NewDetector()
		if err != nil {
			return nil, err
		}
		opts.Detector = d
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewMemory(ratelimit.DefaultConfig())
	}
	if opts.Ready == nil {
		opts.Ready = func(context.Context) error { return nil }
	}

	s := &Server{
		ledger:   opts.Ledger,
		resolver: opts.Resolver,
		ready:    opts.Ready,
		limiter:  opts.Limiter,
		detector: opts.Detector,
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		validate: newValidationHelper(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/transactions", s.api(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions", s.api(s.handleListTransactions))
	mux.Handle("GET /api/transactions/{id}", s.api(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", s.api(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))
	mux.Handle("GET /api/summary", s.api(s.handleSummary))
	mux.Handle("GET /api/overview", s.api(s.handleOverview))
	mux.Handle("GET /api/categories", s.api(s.handleCategories))

	var handler http.Handler = mux
	handler = s.withProbeDetection(handler)
	if len(opts.CORSOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerRequestID},
			ExposedHeaders:   []string{headerRequestID, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.withAccessLog(handler)
	handler = applog.RequestIDMiddleware(s.logger, requestIDFromHeader)(handler)
	handler = withRequestID(handler)
	handler = s.withRecover(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// api wraps a ledger handler with rate limiting of writes and identity
// resolution.
func (s *Server) api(next func(http.ResponseWriter, *http.Request, core.Owner)) http.Handler {
	authed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.resolver.Resolve(r)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Identity resolution failed",
				applog.FieldErrorType, applog.ErrorTypeAuth,
				applog.FieldError, err)
			writeError(w, r, err)
			return
		}
		ctx := auth.WithOwner(r.Context(), owner)
		next(w, r.WithContext(ctx), owner)
	})

	limited := ratelimit.Middleware(s.limiter, s.detector.ClientIP,
		func(w http.ResponseWriter, r *http.Request) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, s.detector.ClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Body(ErrorResponse{Error: "rate limit exceeded, try again later"}).
				Write(w)
		},
		func(r *http.Request, err error) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limiter unavailable, allowing request",
				applog.FieldError, err)
		},
	)(authed)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutation(r.Method) {
			limited.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if stopper, ok := s.limiter.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// withRecover turns a handler panic into a 500 instead of a dropped
// connection.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.ErrorContext(r.Context(), "Handler panic",
					applog.FieldErrorType, applog.ErrorTypeInternal,
					applog.FieldPath, r.URL.Path,
					"panic", rec)
				NewJSONResponse().
					Status(http.StatusInternalServerError).
					Body(ErrorResponse{Error: "internal error"}).
					Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withAccessLog logs request start and completion with the request-scoped
// logger.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ClientIP(r)
		sl := applog.NewStructuredLogger(applog.FromContext(r.Context()))

		sl.LogHTTPStart(r.Context(), r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		sl.LogHTTPEnd(r.Context(), r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// withProbeDetection logs requests that look like scanner probes. They are
// still routed normally and usually end in 404.
func (s *Server) withProbeDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.detector.ClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				slog.Int64("suspicious_total", s.detector.SuspiciousCount()))
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
