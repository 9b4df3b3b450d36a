package host

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/boozedog/loginflow/internal/backend"
	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/guard"
	"github.com/boozedog/loginflow/internal/login"
	"github.com/boozedog/loginflow/internal/navigation"
	"github.com/boozedog/loginflow/internal/page"
	"github.com/boozedog/loginflow/internal/session"
	"github.com/boozedog/loginflow/internal/store"
)

const writeTimeout = 5 * time.Second

// Tab is one bridged browser tab. It is the page.Window and the login
// trigger's page.Control for the guard and login handler it owns.
type Tab struct {
	id     string
	siteID string
	conn   *websocket.Conn
	hub    *Hub
	log    *slog.Logger

	mu       sync.Mutex
	loc      *url.URL
	label    string
	disabled bool
	jar      http.CookieJar
	client   *backend.Client

	watcher *navigation.Watcher
	guard   *guard.Guard
	login   *login.Handler

	wg sync.WaitGroup
}

func newTab(h *Hub, conn *websocket.Conn, hello inbound, cfg *config.Config) (*Tab, error) {
	loc, err := url.Parse(hello.Href)
	if err != nil {
		return nil, fmt.Errorf("parsing href %q: %w", hello.Href, err)
	}

	t := &Tab{
		id:     hello.Tab,
		siteID: hello.SiteID,
		conn:   conn,
		hub:    h,
		log:    h.log.With("tab", session.Ref(hello.Tab)),
		loc:    loc,
		jar:    backend.NewHTTPClient(0).Jar,
	}

	tokens := session.ForTab(h.sessions, t.id)
	t.watcher = navigation.NewWatcher(hello.Href, cfg.Guard.Debounce.Std())
	t.guard = guard.New(guard.Options{}, t, tokens, t, t.log)
	t.login = login.New(login.Options{}, t, tokens, t, t.log)
	t.apply(cfg)

	t.guard.OnDecision(func(path string, d guard.Decision) {
		t.record("guard", path, string(d))
	})
	return t, nil
}

// site resolves the site settings for this tab. A site id in the config
// wins over the one announced by the page.
func (t *Tab) site(cfg *config.Config) config.Site {
	site := cfg.SiteSettings()
	if site.ID == "" {
		site.ID = t.siteID
	}
	return site
}

// apply pushes cfg into the tab's guard, login handler and backend client.
func (t *Tab) apply(cfg *config.Config) {
	site := t.site(cfg)

	gopts := guard.OptionsFromConfig(cfg)
	gopts.Site = site
	t.guard.Update(gopts)

	lopts := login.OptionsFromConfig(cfg)
	lopts.Site = site
	t.login.Update(lopts)

	t.watcher.SetDebounce(cfg.Guard.Debounce.Std())

	// The jar outlives reloads so backend cookies survive them.
	hc := &http.Client{Jar: t.jar, Timeout: cfg.Backend.Timeout.Std()}
	client := backend.New(site.Endpoints, hc, t.log)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
}

func (t *Tab) backend() *backend.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// Login forwards to the backend client for the current endpoints.
func (t *Tab) Login(ctx context.Context, req backend.LoginRequest) (backend.LoginResponse, error) {
	return t.backend().Login(ctx, req)
}

// Verify forwards to the backend client for the current endpoints.
func (t *Tab) Verify(ctx context.Context, req backend.VerifyRequest) (backend.Verdict, error) {
	return t.backend().Verify(ctx, req)
}

func (t *Tab) Location() *url.URL {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := *t.loc
	return &u
}

func (t *Tab) setLocation(href string) {
	if href == "" {
		return
	}
	u, err := url.Parse(href)
	if err != nil {
		t.log.Warn("ignoring malformed href", "href", href, "error", err)
		return
	}
	t.mu.Lock()
	t.loc = u
	t.mu.Unlock()
}

func (t *Tab) Navigate(target string) {
	t.mu.Lock()
	if ref, err := url.Parse(target); err == nil {
		t.loc = t.loc.ResolveReference(ref)
	}
	t.mu.Unlock()
	t.send(outbound{Type: CmdNavigate, URL: target})
}

func (t *Tab) Alert(message string) {
	t.send(outbound{Type: CmdAlert, Message: message})
}

func (t *Tab) Label() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label
}

func (t *Tab) SetLabel(label string) {
	t.mu.Lock()
	t.label = label
	t.mu.Unlock()
	t.sendControl()
}

func (t *Tab) SetDisabled(disabled bool) {
	t.mu.Lock()
	t.disabled = disabled
	t.mu.Unlock()
	t.sendControl()
}

func (t *Tab) sendControl() {
	t.mu.Lock()
	label, disabled := t.label, t.disabled
	t.mu.Unlock()
	t.send(outbound{Type: CmdControl, Label: label, Disabled: &disabled})
}

func (t *Tab) send(msg outbound) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, t.conn, msg); err != nil {
		t.log.Debug("ws write failed", "type", msg.Type, "error", err)
	}
}

func (t *Tab) record(kind, path, outcome string) {
	if t.hub.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := t.hub.store.RecordActivity(ctx, store.Activity{
		Tab:     session.Ref(t.id),
		Kind:    kind,
		Path:    path,
		Outcome: outcome,
	})
	if err != nil {
		t.log.Error("record activity", "kind", kind, "error", err)
	}
}

// serve runs the guard and reads messages until the connection drops.
func (t *Tab) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		t.watcher.Close()
		t.wg.Wait()
	}()

	t.wg.Go(func() { t.guard.Run(ctx, t.watcher) })

	for {
		var msg inbound
		if err := wsjson.Read(ctx, t.conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				t.log.Debug("ws read failed", "error", err)
			}
			return
		}
		t.handle(ctx, msg)
	}
}

func (t *Tab) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case MsgPopstate:
		t.setLocation(msg.Href)
		t.watcher.History(msg.Href)
	case MsgMutation:
		t.setLocation(msg.Href)
		t.watcher.Mutation(msg.Href)
	case MsgRoute:
		t.setLocation(msg.Href)
		t.watcher.Router(msg.Href)
	case MsgLogin:
		t.setLocation(msg.Href)
		if msg.Label != "" && !t.login.Busy() {
			t.mu.Lock()
			t.label = msg.Label
			t.mu.Unlock()
		}
		fields := page.FieldMap(msg.Fields)
		path := page.Path(t.Location())
		t.wg.Go(func() {
			outcome := t.login.Submit(ctx, nil, t, fields)
			if outcome != login.OutcomeBusy {
				t.record("login", path, string(outcome))
			}
		})
	case MsgSubmit:
		// The page already cancelled the native submission.
		t.log.Debug("native form submission blocked")
	case MsgLogout:
		path := page.Path(t.Location())
		t.wg.Go(func() {
			outcome := string(login.OutcomeSuccess)
			if err := t.login.Logout(ctx); err != nil {
				outcome = string(login.OutcomeSessionFailed)
			}
			t.record("logout", path, outcome)
		})
	case MsgHello:
		t.log.Debug("duplicate hello ignored")
	default:
		t.log.Warn("unknown message type", "type", msg.Type)
	}
}
