package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/playperu/tabletop/internal/auth"
	"github.com/playperu/tabletop/internal/ratelimit"
	"github.com/playperu/tabletop/internal/registry"
)

type ctxKey int

const (
	ctxKeyServices ctxKey = iota
)

const requestIDHeader = "X-Request-Id"

// requestID echoes a caller supplied X-Request-Id or generates one, and
// stores it where middleware.GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer turns a panic into an INTERNAL_ERROR envelope.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.Error("panic serving request",
					"panic", rvr,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)
				writeError(w, r, newAPIError(http.StatusInternalServerError, CodeInternal, "internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" && (origin == "*" || reqOrigin == origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
				h.Set("Access-Control-Expose-Headers", "X-Request-Id, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")
				h.Set("Access-Control-Max-Age", "86400")
				if origin != "*" {
					h.Add("Vary", "Origin")
				}
				if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the first X-Forwarded-For entry.
func clientKey(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if key := strings.TrimSpace(first); key != "" {
		return key
	}
	return ratelimit.AnonymousKey
}

// rejectionCounter is notified of every rate-limited request.
type rejectionCounter interface {
	RateLimited()
}

func rateLimit(l *ratelimit.Limiter, counter rejectionCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Admit(clientKey(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetSeconds(), 10))

			if !d.Allowed {
				retry := d.RetryAfterSeconds()
				h.Set("Retry-After", strconv.FormatInt(retry, 10))
				if counter != nil {
					counter.RateLimited()
				}
				writeError(w, r, &apiError{
					status:  http.StatusTooManyRequests,
					code:    CodeRateLimited,
					message: "too many requests, retry later",
					details: map[string]int64{"retryAfterSeconds": retry},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identify resolves the Authorization header once per request. A header
// that is present but not an accepted credential is rejected outright.
func identify(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, newAPIError(http.StatusUnauthorized, CodeUnauthenticated, "invalid bearer credential"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()).Anonymous() {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tabletop"`)
			writeError(w, r, newAPIError(http.StatusUnauthorized, CodeUnauthenticated, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withServices(s *registry.Services) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKeyServices, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func services(r *http.Request) *registry.Services {
	return r.Context().Value(ctxKeyServices).(*registry.Services)
}

// caller is the resolved user id, or "" for anonymous requests.
func caller(r *http.Request) string {
	return auth.FromContext(r.Context()).UserID
}
