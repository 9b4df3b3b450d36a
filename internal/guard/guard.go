// Package guard decides, on every navigation, whether the current page may
// stay visible. The decision always comes from the backend; a stored token
// only lets the guard ask.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boozedog/loginflow/internal/backend"
	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/metrics"
	"github.com/boozedog/loginflow/internal/navigation"
	"github.com/boozedog/loginflow/internal/page"
	"github.com/boozedog/loginflow/internal/session"
)

type State int32

const (
	StateSettled State = iota
	StateChecking
)

func (s State) String() string {
	if s == StateChecking {
		return "checking"
	}
	return "settled"
}

type Decision string

const (
	// DecisionAllow: the backend did not object.
	DecisionAllow Decision = "allow"
	// DecisionLoginPage: on a login route without a token.
	DecisionLoginPage Decision = "login_page"
	// DecisionRedirectRoot: on a login route with a token.
	DecisionRedirectRoot Decision = "redirect_root"
	// DecisionRedirectLogin: unauthorized, token cleared.
	DecisionRedirectLogin Decision = "redirect_login"
	// DecisionNoVerdict: the backend could not be asked.
	DecisionNoVerdict Decision = "no_verdict"
	// DecisionMisconfigured: no site id.
	DecisionMisconfigured Decision = "misconfigured"
	// DecisionStale: a later check was issued before this one resolved.
	DecisionStale Decision = "stale"
)

// Verifier asks the backend about one navigation.
type Verifier interface {
	Verify(ctx context.Context, req backend.VerifyRequest) (backend.Verdict, error)
}

type Options struct {
	Site        config.Site
	LoginRoutes []string
	RootPath    string

	// RequireToken redirects to the login page without asking the backend
	// when no token is stored.
	RequireToken bool
	// AppendRedirect adds ?redirect=<path> to the login page URL.
	AppendRedirect bool
}

// OptionsFromConfig maps the service config onto guard options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Site:           cfg.SiteSettings(),
		LoginRoutes:    cfg.Login.Routes,
		RootPath:       "/",
		RequireToken:   cfg.Guard.RequireToken,
		AppendRedirect: cfg.Guard.AppendRedirect,
	}
}

type Guard struct {
	verifier Verifier
	store    session.Store
	win      page.Window
	log      *slog.Logger

	mu         sync.RWMutex
	opts       Options
	onDecision func(path string, d Decision)

	seq      atomic.Uint64
	inflight atomic.Int32
}

func New(opts Options, verifier Verifier, store session.Store, win page.Window, log *slog.Logger) *Guard {
	return &Guard{
		opts:     normalize(opts),
		verifier: verifier,
		store:    store,
		win:      win,
		log:      log,
	}
}

func normalize(opts Options) Options {
	if opts.RootPath == "" {
		opts.RootPath = "/"
	}
	if opts.Site.LoginPath == "" {
		opts.Site.LoginPath = "/login"
	}
	if opts.LoginRoutes == nil {
		opts.LoginRoutes = config.DefaultLoginRoutes
	}
	return opts
}

// Update replaces the options used by later checks.
func (g *Guard) Update(opts Options) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opts = normalize(opts)
}

// OnDecision registers fn to be called after every check.
func (g *Guard) OnDecision(fn func(path string, d Decision)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDecision = fn
}

func (g *Guard) options() (Options, func(string, Decision)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.opts, g.onDecision
}

// State reports StateChecking while any verification is outstanding.
func (g *Guard) State() State {
	if g.inflight.Load() > 0 {
		return StateChecking
	}
	return StateSettled
}

// Check evaluates the current location once.
func (g *Guard) Check(ctx context.Context) Decision {
	seq := g.seq.Add(1)
	g.inflight.Add(1)
	defer g.inflight.Add(-1)

	opts, hook := g.options()
	path := page.Path(g.win.Location())
	d := g.check(ctx, opts, path, seq)

	metrics.ObserveCheck(string(d))
	if hook != nil {
		hook(path, d)
	}
	return d
}

func (g *Guard) check(ctx context.Context, opts Options, path string, seq uint64) Decision {
	token, hasToken, err := g.store.Get(ctx)
	if err != nil {
		g.log.Error("guard: read token", "error", err)
		hasToken = false
	}

	if IsLoginRoute(path, opts.LoginRoutes) {
		if hasToken {
			g.win.Navigate(opts.RootPath)
			return DecisionRedirectRoot
		}
		return DecisionLoginPage
	}

	if opts.Site.ID == "" {
		g.log.Error("guard: site id not configured, route not verified", "path", path)
		return DecisionMisconfigured
	}

	if opts.RequireToken && !hasToken {
		g.win.Navigate(loginURL(opts, path))
		return DecisionRedirectLogin
	}

	req := backend.VerifyRequest{URL: path, SiteID: opts.Site.ID}
	if hasToken {
		req.Token = &token
	}

	start := time.Now()
	verdict, err := g.verifier.Verify(ctx, req)
	metrics.ObserveVerify(start)

	if seq != g.seq.Load() {
		g.log.Debug("guard: discarding stale verdict", "path", path, "seq", seq)
		return DecisionStale
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			g.log.Error("guard: verify", "path", path, "error", err)
		}
		return DecisionNoVerdict
	}
	if !verdict.Unauthorized() {
		return DecisionAllow
	}

	if err := g.store.Clear(ctx); err != nil {
		g.log.Error("guard: clear token", "error", err)
	}
	target := loginURL(opts, path)
	g.log.Info("guard: unauthorized", "path", path, "target", target)
	g.win.Navigate(target)
	return DecisionRedirectLogin
}

// Run checks once, then once per navigation from src, until ctx ends or src
// closes. Checks run concurrently; stale verdicts are discarded by Check.
func (g *Guard) Run(ctx context.Context, src navigation.Source) {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Go(func() { g.Check(ctx) })
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src.Events():
			if !ok {
				return
			}
			g.log.Debug("guard: navigation", "kind", ev.Kind, "url", ev.URL)
			wg.Go(func() { g.Check(ctx) })
		}
	}
}

// IsLoginRoute reports whether path equals or starts with one of routes.
func IsLoginRoute(path string, routes []string) bool {
	for _, r := range routes {
		if strings.HasPrefix(path, r) {
			return true
		}
	}
	return false
}

func loginURL(opts Options, path string) string {
	if !opts.AppendRedirect {
		return opts.Site.LoginPath
	}
	return opts.Site.LoginPath + "?redirect=" + url.QueryEscape(path)
}
