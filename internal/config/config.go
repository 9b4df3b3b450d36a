package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Redirect policies for a successful login.
const (
	RedirectRoot  = "root"
	RedirectQuery = "query"
	RedirectFixed = "fixed"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionSQLite = "sqlite"
	SessionRedis  = "redis"
)

// DefaultLoginRoutes are the login page spellings the guard never verifies.
var DefaultLoginRoutes = []string{"/login", "/login-page", "/login/", "/login-page/"}

type Config struct {
	HTTP     HTTPConfig    `json:"http"`
	Database string        `json:"database"`
	LogLevel string        `json:"log_level"`
	Site     SiteConfig    `json:"site"`
	Backend  BackendConfig `json:"backend"`
	Login    LoginConfig   `json:"login"`
	Guard    GuardConfig   `json:"guard"`
	Session  SessionConfig `json:"session"`
}

type HTTPConfig struct {
	Address string `json:"address"`
	// AllowedOrigins are extra host patterns allowed to open the bridge
	// websocket, in addition to the site origin.
	AllowedOrigins []string `json:"allowed_origins"`
	// AdminToken is the bearer token for /api/log and /api/activity. When
	// empty those endpoints answer loopback clients only.
	AdminToken string `json:"admin_token"`
}

type SiteConfig struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
}

type BackendConfig struct {
	URL        string   `json:"url"`
	LoginPath  string   `json:"login_path"`
	VerifyPath string   `json:"verify_path"`
	Timeout    Duration `json:"timeout"`
}

type LoginConfig struct {
	Path           string   `json:"path"`
	Routes         []string `json:"routes"`
	Redirect       string   `json:"redirect"`
	Target         string   `json:"target"`
	LogoutTarget   string   `json:"logout_target"`
	EmailMarker    string   `json:"email_marker"`
	PasswordMarker string   `json:"password_marker"`
}

type GuardConfig struct {
	Debounce       Duration `json:"debounce"`
	RequireToken   bool     `json:"require_token"`
	AppendRedirect bool     `json:"append_redirect"`
}

type SessionConfig struct {
	Backend  string   `json:"backend"`
	RedisURL string   `json:"redis_url"`
	TTL      Duration `json:"ttl"`
}

// Duration is a time.Duration that decodes from strings like "100ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"100ms\": %s", b)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Site is the explicit configuration handed to the login handler and the
// route guard at initialization.
type Site struct {
	ID        string
	Origin    string
	LoginPath string
	Endpoints Endpoints
}

type Endpoints struct {
	BaseURL string
	Login   string
	Verify  string
}

// Default returns a config populated with defaults only.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Address: "127.0.0.1:8080"},
		Database: "loginflow.db",
		LogLevel: "info",
		Backend: BackendConfig{
			URL:        "https://login-flow-backend.onrender.com",
			LoginPath:  "/member-login",
			VerifyPath: "/verify",
		},
		Login: LoginConfig{
			Path:           "/login",
			Routes:         append([]string(nil), DefaultLoginRoutes...),
			Redirect:       RedirectQuery,
			LogoutTarget:   "/login",
			EmailMarker:    "login-flow-email",
			PasswordMarker: "login-flow-password",
		},
		Guard: GuardConfig{
			Debounce:       Duration(100 * time.Millisecond),
			AppendRedirect: true,
		},
		Session: SessionConfig{
			Backend: SessionSQLite,
			TTL:     Duration(24 * time.Hour),
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Expand $VAR references so secrets can live in the environment.
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SiteSettings builds the configuration object shared by the login handler
// and the route guard.
func (c *Config) SiteSettings() Site {
	return Site{
		ID:        c.Site.ID,
		Origin:    strings.TrimRight(c.Site.Origin, "/"),
		LoginPath: c.Login.Path,
		Endpoints: Endpoints{
			BaseURL: strings.TrimRight(c.Backend.URL, "/"),
			Login:   c.Backend.LoginPath,
			Verify:  c.Backend.VerifyPath,
		},
	}
}

func (c *Config) validate() error {
	if c.HTTP.Address == "" {
		return fmt.Errorf("config: http.address must not be empty")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("config: backend.url must not be empty")
	}
	if !strings.HasPrefix(c.Backend.LoginPath, "/") || !strings.HasPrefix(c.Backend.VerifyPath, "/") {
		return fmt.Errorf("config: backend.login_path and backend.verify_path must start with /")
	}
	if !strings.HasPrefix(c.Login.Path, "/") {
		return fmt.Errorf("config: login.path must start with /")
	}
	for i, r := range c.Login.Routes {
		if !strings.HasPrefix(r, "/") {
			return fmt.Errorf("config: login.routes[%d] must start with /", i)
		}
	}
	switch c.Login.Redirect {
	case RedirectRoot, RedirectQuery:
	case RedirectFixed:
		if !strings.HasPrefix(c.Login.Target, "/") {
			return fmt.Errorf("config: login.target must start with / when login.redirect is %q", RedirectFixed)
		}
	default:
		return fmt.Errorf("config: unknown login.redirect %q", c.Login.Redirect)
	}
	if !strings.HasPrefix(c.Login.LogoutTarget, "/") {
		return fmt.Errorf("config: login.logout_target must start with /")
	}
	if c.Login.EmailMarker == "" || c.Login.PasswordMarker == "" {
		return fmt.Errorf("config: login field markers must not be empty")
	}
	if c.Guard.Debounce < 0 {
		return fmt.Errorf("config: guard.debounce must not be negative")
	}
	switch c.Session.Backend {
	case SessionMemory:
	case SessionSQLite:
		if c.Database == "" {
			return fmt.Errorf("config: database path must not be empty")
		}
	case SessionRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("config: session.redis_url must not be empty for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown session.backend %q", c.Session.Backend)
	}
	return nil
}
