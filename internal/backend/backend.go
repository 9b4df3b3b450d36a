// Package backend talks to the remote authentication service. The service's
// decisions are opaque: this package only moves requests and verdicts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/boozedog/loginflow/internal/config"
)

// ErrUnreachable wraps every failure that produced no usable response.
var ErrUnreachable = errors.New("backend: authentication server unreachable")

// RejectedError is a login the backend answered but did not accept.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: login rejected (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: login rejected (HTTP %d)", e.Status)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SiteID   string `json:"siteId"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

type VerifyRequest struct {
	URL    string  `json:"url"`
	Token  *string `json:"token"`
	SiteID string  `json:"site_id"`
}

// Verdict is the /verify answer. Authorized is nil when the field is absent.
type Verdict struct {
	Authorized *bool `json:"authorized"`
}

// Unauthorized reports an explicit "authorized": false.
func (v Verdict) Unauthorized() bool {
	return v.Authorized != nil && !*v.Authorized
}

type Client struct {
	baseURL    string
	loginPath  string
	verifyPath string
	http       *http.Client
	log        *slog.Logger
}

// NewHTTPClient returns a client with its own cookie jar, so cookies set by
// the backend are sent back on later calls. A zero timeout means none.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar, Timeout: timeout}
}

// New builds a client for endpoints. A nil httpClient gets NewHTTPClient(0).
func New(endpoints config.Endpoints, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	loginPath := endpoints.Login
	if loginPath == "" {
		loginPath = "/member-login"
	}
	verifyPath := endpoints.Verify
	if verifyPath == "" {
		verifyPath = "/verify"
	}
	return &Client{
		baseURL:    strings.TrimRight(endpoints.BaseURL, "/"),
		loginPath:  loginPath,
		verifyPath: verifyPath,
		http:       httpClient,
		log:        log,
	}
}

// Login posts credentials. A nil error always carries a non-empty token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	status, err := c.post(ctx, c.loginPath, req, &out)
	if err != nil {
		return LoginResponse{}, err
	}
	if status < 200 || status > 299 || out.Token == "" {
		return LoginResponse{}, &RejectedError{Status: status, Message: out.Message}
	}
	return out, nil
}

// Verify asks whether the (path, token, site) triple is authorized.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (Verdict, error) {
	var out Verdict
	if _, err := c.post(ctx, c.verifyPath, req, &out); err != nil {
		return Verdict{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("backend: encode request: %w", err)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnreachable, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: read body: %w", ErrUnreachable, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: HTTP %d: decode body: %w", ErrUnreachable, path, resp.StatusCode, err)
	}

	c.log.Debug("backend: response", "path", path, "status", resp.StatusCode)
	return resp.StatusCode, nil
}
