package login

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/boozedog/loginflow/internal/backend"
	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/metrics"
	"github.com/boozedog/loginflow/internal/page"
	"github.com/boozedog/loginflow/internal/session"
)

// User-visible messages.
const (
	MsgFieldsMissing = "Error: Login fields not found"
	MsgFillAll       = "Please fill in all fields"
	MsgInvalid       = "Invalid credentials"
	MsgUnreachable   = "Error connecting to the authentication server"
	MsgSessionFailed = "Could not save your session, please try again"

	DefaultLoadingLabel = "Loading..."
)

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFieldsMissing Outcome = "fields_missing"
	OutcomeInvalid       Outcome = "invalid_input"
	OutcomeRejected      Outcome = "rejected"
	OutcomeUnreachable   Outcome = "unreachable"
	OutcomeSessionFailed Outcome = "session_failed"
	OutcomeBusy          Outcome = "busy"
)

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Login(ctx context.Context, req backend.LoginRequest) (backend.LoginResponse, error)
}

type Options struct {
	Site config.Site

	// Redirect is one of config.RedirectRoot, RedirectQuery, RedirectFixed.
	Redirect     string
	Target       string
	LogoutTarget string

	EmailMarker    string
	PasswordMarker string
	LoadingLabel   string
}

// OptionsFromConfig maps the service config onto handler options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Site:           cfg.SiteSettings(),
		Redirect:       cfg.Login.Redirect,
		Target:         cfg.Login.Target,
		LogoutTarget:   cfg.Login.LogoutTarget,
		EmailMarker:    cfg.Login.EmailMarker,
		PasswordMarker: cfg.Login.PasswordMarker,
	}
}

// Handler runs login and logout for one tab.
type Handler struct {
	mu    sync.RWMutex
	opts  Options
	auth  Authenticator
	store session.Store
	win   page.Window
	log   *slog.Logger

	busy atomic.Bool
}

func New(opts Options, auth Authenticator, store session.Store, win page.Window, log *slog.Logger) *Handler {
	return &Handler{opts: withDefaults(opts), auth: auth, store: store, win: win, log: log}
}

func withDefaults(opts Options) Options {
	if opts.LoadingLabel == "" {
		opts.LoadingLabel = DefaultLoadingLabel
	}
	if opts.EmailMarker == "" {
		opts.EmailMarker = "login-flow-email"
	}
	if opts.PasswordMarker == "" {
		opts.PasswordMarker = "login-flow-password"
	}
	if opts.LogoutTarget == "" {
		opts.LogoutTarget = "/login"
	}
	return opts
}

// Update replaces the options used by later submissions.
func (h *Handler) Update(opts Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = withDefaults(opts)
}

func (h *Handler) options() Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts
}

// Busy reports whether a submission is in flight.
func (h *Handler) Busy() bool {
	return h.busy.Load()
}

// InterceptSubmit cancels a native form submission so that pressing Enter
// cannot bypass Submit.
func (h *Handler) InterceptSubmit(ev page.Event) {
	cancel(ev)
}

func cancel(ev page.Event) {
	if ev == nil {
		return
	}
	ev.PreventDefault()
	ev.StopPropagation()
	ev.StopImmediatePropagation()
}

// Submit handles activation of the login trigger.
func (h *Handler) Submit(ctx context.Context, ev page.Event, trigger page.Control, fields page.Fields) Outcome {
	cancel(ev)

	// The trigger is disabled while a request is in flight.
	if !h.busy.CompareAndSwap(false, true) {
		return OutcomeBusy
	}
	defer h.busy.Store(false)

	outcome := h.submit(ctx, h.options(), trigger, fields)
	metrics.ObserveLogin(string(outcome))
	return outcome
}

func (h *Handler) submit(ctx context.Context, opts Options, trigger page.Control, fields page.Fields) Outcome {
	email, emailOK := fields.Lookup(opts.EmailMarker)
	password, passwordOK := fields.Lookup(opts.PasswordMarker)
	if !emailOK || !passwordOK {
		h.log.Error("login: fields not found", "email_marker", opts.EmailMarker, "password_marker", opts.PasswordMarker)
		h.win.Alert(MsgFieldsMissing)
		return OutcomeFieldsMissing
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		h.win.Alert(MsgFillAll)
		return OutcomeInvalid
	}

	original := trigger.Label()
	trigger.SetLabel(opts.LoadingLabel)
	trigger.SetDisabled(true)
	restore := func() {
		trigger.SetLabel(original)
		trigger.SetDisabled(false)
	}

	resp, err := h.auth.Login(ctx, backend.LoginRequest{
		Email:    email,
		Password: password,
		SiteID:   opts.Site.ID,
	})
	if err != nil {
		restore()
		var rejected *backend.RejectedError
		if errors.As(err, &rejected) {
			h.log.Warn("login: invalid credentials", "status", rejected.Status)
			msg := MsgInvalid
			if rejected.Message != "" {
				msg = rejected.Message
			}
			h.win.Alert(msg)
			return OutcomeRejected
		}
		h.log.Error("login: error connecting to the authentication server", "error", err)
		h.win.Alert(MsgUnreachable)
		return OutcomeUnreachable
	}

	if err := h.store.Set(ctx, resp.Token); err != nil {
		restore()
		h.log.Error("login: store token", "error", err)
		h.win.Alert(MsgSessionFailed)
		return OutcomeSessionFailed
	}

	target := h.successTarget(opts)
	h.log.Info("login: success", "target", target)
	h.win.Navigate(target)
	return OutcomeSuccess
}

// successTarget picks the post-login location. Only same-origin absolute
// paths taken from the redirect query parameter are honored.
func (h *Handler) successTarget(opts Options) string {
	loc := h.win.Location()
	origin := page.Origin(loc)
	if origin == "" {
		origin = opts.Site.Origin
	}

	switch opts.Redirect {
	case config.RedirectFixed:
		return origin + opts.Target
	case config.RedirectQuery:
		if loc != nil {
			if to := loc.Query().Get("redirect"); page.SameOriginPath(to) {
				return origin + to
			}
		}
	}
	return origin + "/"
}

// Logout clears the token and leaves for the logout target. The navigation
// happens even when clearing fails.
func (h *Handler) Logout(ctx context.Context) error {
	err := h.store.Clear(ctx)
	if err != nil {
		h.log.Error("login: clear token on logout", "error", err)
	}
	h.win.Navigate(h.options().LogoutTarget)
	return err
}
