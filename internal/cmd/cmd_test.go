package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/session"
	"github.com/boozedog/loginflow/internal/store"
)

type testBackend struct {
	deny atomic.Bool
	srv  *httptest.Server
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	tb := &testBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /member-login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" || req["siteId"] != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok-cli"}`)
	})
	mux.HandleFunc("POST /verify", func(w http.ResponseWriter, r *http.Request) {
		if tb.deny.Load() {
			_, _ = io.WriteString(w, `{"authorized":false}`)
			return
		}
		_, _ = io.WriteString(w, `{"authorized":true}`)
	})
	tb.srv = httptest.NewServer(mux)
	t.Cleanup(tb.srv.Close)
	return tb
}

// writeTestConfig returns a config path and its database path.
func writeTestConfig(t *testing.T, backendURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "loginflow.db")
	cfg := fmt.Sprintf(`{
  "database": %q,
  "site": {"id": "s1", "origin": "https://site.example"},
  "backend": {"url": %q}
}`, db, backendURL)
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path, db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func storedToken(t *testing.T, db string) (string, bool) {
	t.Helper()
	st, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	tok, ok, err := session.NewSQLite(st.DB()).Load(context.Background(), cliTab)
	if err != nil {
		t.Fatal(err)
	}
	return tok, ok
}

func TestLoginCheckLogout(t *testing.T) {
	tb := newTestBackend(t)
	cfg, db := writeTestConfig(t, tb.srv.URL)

	out, err := run(t, "--config", cfg, "login", "--email", "a@b.com", "--password", "secret", "--from", "/login?redirect=/members")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "navigate: https://site.example/members") {
		t.Errorf("login output = %q", out)
	}
	if tok, ok := storedToken(t, db); !ok || tok != "tok-cli" {
		t.Fatalf("token = %q, %v; want tok-cli", tok, ok)
	}

	out, err = run(t, "--config", cfg, "check", "/members")
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "decision: allow") {
		t.Errorf("check output = %q", out)
	}

	out, err = run(t, "--config", cfg, "logout")
	if err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if !strings.Contains(out, "navigate: /login") {
		t.Errorf("logout output = %q", out)
	}
	if _, ok := storedToken(t, db); ok {
		t.Error("token still stored after logout")
	}

	st, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	rows, err := st.RecentActivity(context.Background(), session.Ref(cliTab), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0].Kind != "logout" || rows[2].Kind != "login" || rows[2].Path != "/login" {
		t.Errorf("activity = %+v", rows)
	}
}

func TestLogin_Rejected(t *testing.T) {
	tb := newTestBackend(t)
	cfg, db := writeTestConfig(t, tb.srv.URL)

	_, err := run(t, "--config", cfg, "login", "--email", "a@b.com", "--password", "nope")
	if err == nil || !strings.Contains(err.Error(), "Invalid credentials") {
		t.Fatalf("err = %v, want invalid credentials", err)
	}
	if _, ok := storedToken(t, db); ok {
		t.Error("token stored after rejected login")
	}
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	tb := newTestBackend(t)
	cfg, _ := writeTestConfig(t, tb.srv.URL)
	t.Setenv("LOGINFLOW_PASSWORD", "secret")

	if _, err := run(t, "--config", cfg, "login", "--email", "a@b.com"); err != nil {
		t.Fatalf("login error = %v", err)
	}
}

func TestLogin_EmptyFields(t *testing.T) {
	tb := newTestBackend(t)
	cfg, _ := writeTestConfig(t, tb.srv.URL)
	t.Setenv("LOGINFLOW_PASSWORD", "")

	_, err := run(t, "--config", cfg, "login", "--email", "a@b.com")
	if err == nil || !strings.Contains(err.Error(), "Please fill in all fields") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheck_Unauthorized(t *testing.T) {
	tb := newTestBackend(t)
	tb.deny.Store(true)
	cfg, _ := writeTestConfig(t, tb.srv.URL)

	out, err := run(t, "--config", cfg, "check", "/members")
	if err == nil {
		t.Fatal("check expected error for unauthorized route")
	}
	if !strings.Contains(out, "navigate: /login?redirect=%2Fmembers") {
		t.Errorf("check output = %q", out)
	}
}

func TestCheck_MissingSiteID(t *testing.T) {
	tb := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := fmt.Sprintf(`{"session":{"backend":"memory"},"database":"","backend":{"url":%q}}`, tb.srv.URL)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", path, "check", "/members")
	if err == nil || !strings.Contains(err.Error(), "misconfigured") {
		t.Fatalf("err = %v, want misconfigured", err)
	}
	if strings.Contains(out, "navigate:") {
		t.Errorf("misconfigured check navigated: %q", out)
	}
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.json"), "logout")
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestOpenSessions(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tests := []struct {
		name    string
		backend string
		db      string
		wantErr bool
	}{
		{"memory", config.SessionMemory, "", false},
		{"sqlite", config.SessionSQLite, ":memory:", false},
		{"sqlite without db", config.SessionSQLite, "", true},
		{"unknown", "cookie", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Session.Backend = tt.backend
			cfg.Database = tt.db

			sessions, _, release, err := openSessions(ctx, cfg, log)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openSessions() error = %v", err)
			}
			defer release()

			tokens := session.ForTab(sessions, cliTab)
			if err := tokens.Set(ctx, "t"); err != nil {
				t.Fatal(err)
			}
			if tok, ok, _ := tokens.Get(ctx); !ok || tok != "t" {
				t.Errorf("Get() = %q, %v", tok, ok)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c, err := newConsole(&out, "https://site.example/login")
	if err != nil {
		t.Fatal(err)
	}
	c.Navigate("/members")
	c.Alert("hi")

	if got := c.Location().String(); got != "https://site.example/members" {
		t.Errorf("Location() = %q", got)
	}
	if c.lastAlert() != "hi" {
		t.Errorf("lastAlert() = %q", c.lastAlert())
	}
	if want := "navigate: /members\nalert: hi\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
