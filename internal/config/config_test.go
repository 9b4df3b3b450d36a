package config

import (
	"os"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `{"http":{"address":"localhost:8080"},"site":{"id":"s1","origin":"https://example.com/"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != "localhost:8080" {
		t.Errorf("HTTP.Address = %q, want %q", cfg.HTTP.Address, "localhost:8080")
	}
	if cfg.Site.ID != "s1" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "s1")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != "127.0.0.1:8080" {
		t.Errorf("HTTP.Address = %q, want %q", cfg.HTTP.Address, "127.0.0.1:8080")
	}
	if cfg.Database != "loginflow.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "loginflow.db")
	}
	if cfg.Guard.Debounce.Std() != 100*time.Millisecond {
		t.Errorf("Guard.Debounce = %v, want 100ms", cfg.Guard.Debounce.Std())
	}
	if !slices.Equal(cfg.Login.Routes, DefaultLoginRoutes) {
		t.Errorf("Login.Routes = %v, want %v", cfg.Login.Routes, DefaultLoginRoutes)
	}
	if cfg.Backend.LoginPath != "/member-login" || cfg.Backend.VerifyPath != "/verify" {
		t.Errorf("backend paths = %q, %q", cfg.Backend.LoginPath, cfg.Backend.VerifyPath)
	}
	if cfg.Login.Redirect != RedirectQuery {
		t.Errorf("Login.Redirect = %q, want %q", cfg.Login.Redirect, RedirectQuery)
	}
	if cfg.Guard.RequireToken {
		t.Error("Guard.RequireToken should default to false")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("LOGINFLOW_TEST_SITE", "tenant-42")
	path := writeConfig(t, `{"site":{"id":"$LOGINFLOW_TEST_SITE"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.ID != "tenant-42" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "tenant-42")
	}
}

func TestLoad_Durations(t *testing.T) {
	path := writeConfig(t, `{"guard":{"debounce":"250ms"},"backend":{"timeout":"5s"},"session":{"ttl":"1h"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Guard.Debounce.Std() != 250*time.Millisecond {
		t.Errorf("Guard.Debounce = %v", cfg.Guard.Debounce.Std())
	}
	if cfg.Backend.Timeout.Std() != 5*time.Second {
		t.Errorf("Backend.Timeout = %v", cfg.Backend.Timeout.Std())
	}
	if cfg.Session.TTL.Std() != time.Hour {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL.Std())
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `{"guard":{"debounce":"soon"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_NumericDurationRejected(t *testing.T) {
	path := writeConfig(t, `{"guard":{"debounce":100}}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted a bare number as a duration")
	}
	if !strings.Contains(err.Error(), "must be a string") {
		t.Errorf("Load() error = %v, want a hint to use a string", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("Load() expected error for nonexistent file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not valid json}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid JSON, got nil")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty address", `{"http":{"address":""}}`, "http.address"},
		{"empty backend", `{"backend":{"url":""}}`, "backend.url"},
		{"relative verify path", `{"backend":{"verify_path":"verify"}}`, "verify_path"},
		{"relative login path", `{"login":{"path":"login"}}`, "login.path"},
		{"relative login route", `{"login":{"routes":["/login","signin"]}}`, "login.routes[1]"},
		{"unknown redirect", `{"login":{"redirect":"elsewhere"}}`, "login.redirect"},
		{"fixed without target", `{"login":{"redirect":"fixed"}}`, "login.target"},
		{"relative logout target", `{"login":{"logout_target":"home"}}`, "logout_target"},
		{"empty marker", `{"login":{"email_marker":""}}`, "markers"},
		{"sqlite without database", `{"database":""}`, "database"},
		{"redis without url", `{"session":{"backend":"redis"}}`, "redis_url"},
		{"unknown session backend", `{"session":{"backend":"cookie"}}`, "session.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FixedRedirect(t *testing.T) {
	path := writeConfig(t, `{"login":{"redirect":"fixed","target":"/home"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Login.Target != "/home" {
		t.Errorf("Login.Target = %q, want /home", cfg.Login.Target)
	}
}

func TestSiteSettings(t *testing.T) {
	cfg := Default()
	cfg.Site = SiteConfig{ID: "s1", Origin: "https://example.com/"}
	cfg.Backend.URL = "https://auth.example.com/"

	site := cfg.SiteSettings()
	if site.ID != "s1" {
		t.Errorf("ID = %q", site.ID)
	}
	if site.Origin != "https://example.com" {
		t.Errorf("Origin = %q, want trailing slash trimmed", site.Origin)
	}
	if site.Endpoints.BaseURL != "https://auth.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", site.Endpoints.BaseURL)
	}
	if site.LoginPath != "/login" {
		t.Errorf("LoginPath = %q", site.LoginPath)
	}
}
