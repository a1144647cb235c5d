package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://play.example.com/")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("FEDERATION_SERVERS", "north=https://north.example.com,south=https://south.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.HTTPAddr(); got != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", got)
	}
	if cfg.PublicBaseURL != "https://play.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 100 {
		t.Errorf("RateLimitMax = %d, want default 100", cfg.RateLimitMax)
	}
	if got := cfg.FederationServers["south"]; got != "https://south.example.com" {
		t.Errorf("FederationServers[south] = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"API_TOKEN": ""}},
		{name: "bad driver", env: map[string]string{"API_TOKEN": "s", "STORE_DRIVER": "postgres"}},
		{name: "zero limit", env: map[string]string{"API_TOKEN": "s", "RATE_LIMIT_MAX": "0"}},
		{name: "tiny divisions", env: map[string]string{"API_TOKEN": "s", "DIVISION_SIZE": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
