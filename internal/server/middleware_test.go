package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	const client = "203.0.113.7"
	reset := strconv.FormatInt(env.clock.Now().Add(time.Minute).Unix(), 10)

	for i, wantRemaining := range []string{"1", "0"} {
		rec := env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Forwarded-For", client+", 10.0.0.1")
		wantStatus(t, rec, http.StatusOK)
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request %d: remaining = %q, want %q", i+1, got, wantRemaining)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("request %d: limit = %q, want 2", i+1, got)
		}
		if got := rec.Header().Get("X-RateLimit-Reset"); got != reset {
			t.Errorf("request %d: reset = %q, want %q", i+1, got, reset)
		}
	}

	env.clock.Advance(20 * time.Second)
	rec := env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Forwarded-For", client)
	resp := wantError(t, rec, http.StatusTooManyRequests, CodeRateLimited)
	if got := rec.Header().Get("Retry-After"); got != "40" {
		t.Errorf("Retry-After = %q, want 40", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("remaining on reject = %q, want 0", got)
	}
	details, _ := resp.Error.Details.(map[string]any)
	if details["retryAfterSeconds"] != float64(40) {
		t.Errorf("details = %v, want retryAfterSeconds 40", resp.Error.Details)
	}

	t.Run("other clients unaffected", func(t *testing.T) {
		wantStatus(t, env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Forwarded-For", "198.51.100.1"), http.StatusOK)
		wantStatus(t, env.do(http.MethodGet, "/v1/catalog", "", nil), http.StatusOK)
	})

	t.Run("platform endpoints are not limited", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/health", "", nil, "X-Forwarded-For", client)
		wantStatus(t, rec, http.StatusOK)
		if rec.Header().Get("X-RateLimit-Limit") != "" {
			t.Error("health response carries rate limit headers")
		}
	})

	t.Run("window rolls over", func(t *testing.T) {
		env.clock.Advance(41 * time.Second)
		rec := env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Forwarded-For", client)
		wantStatus(t, rec, http.StatusOK)
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
			t.Errorf("remaining after rollover = %q, want 1", got)
		}
	})
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, 100)

	t.Run("echoed", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Request-Id", "trace-42")
		if got := rec.Header().Get("X-Request-Id"); got != "trace-42" {
			t.Errorf("X-Request-Id = %q, want trace-42", got)
		}
	})

	t.Run("generated", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/catalog", "", nil)
		if rec.Header().Get("X-Request-Id") == "" {
			t.Error("no X-Request-Id generated")
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		long := strings.Repeat("x", 200)
		rec := env.do(http.MethodGet, "/v1/catalog", "", nil, "X-Request-Id", long)
		if got := rec.Header().Get("X-Request-Id"); got == long || got == "" {
			t.Errorf("X-Request-Id = %q, want a generated id", got)
		}
	})

	t.Run("carried in error envelope", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/catalog/chess", "", nil, "X-Request-Id", "trace-43")
		resp := wantError(t, rec, http.StatusNotFound, CodeNotFound)
		if resp.RequestID != "trace-43" {
			t.Errorf("requestId = %q, want trace-43", resp.RequestID)
		}
	})
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		user   string
	}{
		{name: "anonymous public route", path: "/v1/catalog", status: http.StatusOK},
		{name: "anonymous protected route", path: "/v1/me", status: http.StatusUnauthorized},
		{name: "unknown token on public route", path: "/v1/catalog", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/v1/me", header: "Basic " + testSecret, status: http.StatusUnauthorized},
		{name: "shared secret", path: "/v1/me", header: "Bearer " + testSecret, status: http.StatusOK, user: defaultUser},
		{name: "signed token", path: "/v1/me", header: env.token("alice"), status: http.StatusOK, user: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			rec := env.do(http.MethodGet, tt.path, "", nil, headers...)
			if tt.status == http.StatusUnauthorized {
				wantError(t, rec, tt.status, CodeUnauthenticated)
				return
			}
			wantStatus(t, rec, tt.status)
			if tt.user != "" {
				me := decode[struct {
					ID string `json:"id"`
				}](t, rec)
				if me.ID != tt.user {
					t.Errorf("id = %q, want %q", me.ID, tt.user)
				}
			}
		})
	}
}

func TestAuthenticatedCallerBecomesKnownUser(t *testing.T) {
	env := newTestEnv(t, 100)

	wantError(t, env.do(http.MethodGet, "/v1/users/carol", "", nil), http.StatusNotFound, CodeNotFound)
	wantStatus(t, env.do(http.MethodGet, "/v1/me/challenges", "carol", nil), http.StatusOK)
	wantStatus(t, env.do(http.MethodGet, "/v1/users/carol", "", nil), http.StatusOK)
}

func TestRoutingErrors(t *testing.T) {
	env := newTestEnv(t, 100)

	wantError(t, env.do(http.MethodGet, "/v2/nothing", "", nil), http.StatusNotFound, CodeNotFound)
	wantError(t, env.do(http.MethodPatch, "/v1/catalog", "", nil), http.StatusMethodNotAllowed, CodeMethodNotAllowed)
	wantError(t, env.do(http.MethodGet, "/v1/games/missing", "", nil), http.StatusNotFound, CodeNotFound)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodOptions, "/v1/challenges", "", nil,
		"Origin", "https://app.example.com",
		"Access-Control-Request-Method", "POST",
	)
	wantStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Allow-Headers = %q, want Authorization listed", got)
	}
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(http.MethodGet, "/health", "", nil)
		wantStatus(t, rec, http.StatusOK)
		body := decode[map[string]any](t, rec)
		if body["status"] != "ok" || body["version"] != "1.2.3" || body["timestamp"] == nil {
			t.Errorf("health = %v", body)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		env := newTestEnv(t, 100, withHealthCheck("sqlite", errors.New("locked")))
		rec := env.do(http.MethodGet, "/health", "", nil)
		wantStatus(t, rec, http.StatusServiceUnavailable)
		body := decode[map[string]any](t, rec)
		if body["status"] != "degraded" {
			t.Errorf("status = %v, want degraded", body["status"])
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 1)
	env.do(http.MethodGet, "/v1/catalog", "", nil)
	env.do(http.MethodGet, "/v1/catalog", "", nil)

	rec := env.do(http.MethodGet, "/metrics", "", nil)
	wantStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{
		`tabletop_http_requests_total{method="GET",route="/v1/catalog",status="200"} 1`,
		`tabletop_http_requests_total{method="GET",route="/v1/catalog",status="429"} 1`,
		"tabletop_ratelimit_rejections_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodGet, "/openapi.json", "", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	doc := decode[struct {
		OpenAPI string                               `json:"openapi"`
		Info    struct{ Version string }             `json:"info"`
		Paths   map[string]map[string]map[string]any `json:"paths"`
	}](t, rec)
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("info.version = %q", doc.Info.Version)
	}

	a := &api{validate: newValidator(), broker: NewBroker()}
	for _, rt := range a.routes() {
		op, ok := doc.Paths[rt.path][strings.ToLower(rt.method)]
		if !ok {
			t.Errorf("%s %s missing from document", rt.method, rt.path)
			continue
		}
		if _, secured := op["security"]; secured != rt.auth {
			t.Errorf("%s %s: security declared = %v, want %v", rt.method, rt.path, secured, rt.auth)
		}
	}
	if _, ok := doc.Paths["/health"]; !ok {
		t.Error("/health missing from document")
	}

	docs := env.do(http.MethodGet, "/docs", "", nil)
	wantStatus(t, docs, http.StatusOK)
	if !strings.Contains(docs.Body.String(), "/openapi.json") {
		t.Error("docs page does not reference /openapi.json")
	}
}
