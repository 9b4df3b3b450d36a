package host

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/metrics"
	"github.com/boozedog/loginflow/internal/session"
	"github.com/boozedog/loginflow/internal/store"
)

// Hub accepts bridge connections and keeps the set of live tabs.
type Hub struct {
	mu     sync.Mutex
	tabs   map[*Tab]struct{}
	issued map[string]struct{}
	cfg    *config.Config
	notify chan struct{}

	sessions session.Backend
	store    *store.Store
	log      *slog.Logger
}

// NewHub serves tabs with cfg. st may be nil, in which case activity is not
// recorded.
func NewHub(cfg *config.Config, sessions session.Backend, st *store.Store, log *slog.Logger) *Hub {
	return &Hub{
		tabs:     make(map[*Tab]struct{}),
		issued:   make(map[string]struct{}),
		cfg:      cfg,
		notify:   make(chan struct{}, 1),
		sessions: sessions,
		store:    st,
		log:      log,
	}
}

// Config returns the config currently applied to new tabs.
func (h *Hub) Config() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// Reload swaps in cfg. Connected tabs pick it up on the next Run pass.
func (h *Hub) Reload(cfg *config.Config) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	h.Notify()
}

// Notify schedules a re-apply pass. Non-blocking send coalesces bursts.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run re-applies the config to every tab and re-checks its route whenever
// notified.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.notify:
			h.reapply(ctx)
		}
	}
}

func (h *Hub) reapply(ctx context.Context) {
	h.mu.Lock()
	cfg := h.cfg
	tabs := make([]*Tab, 0, len(h.tabs))
	for t := range h.tabs {
		tabs = append(tabs, t)
	}
	h.mu.Unlock()

	h.log.Info("config applied to connected tabs", "tabs", len(tabs))
	var wg sync.WaitGroup
	for _, t := range tabs {
		t.apply(cfg)
		wg.Go(func() { t.guard.Check(ctx) })
	}
	wg.Wait()
}

// Len returns the number of connected tabs.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs)
}

// issue records id as handed out by this hub. With a store the record
// survives restarts.
func (h *Hub) issue(ctx context.Context, id string) {
	h.mu.Lock()
	h.issued[id] = struct{}{}
	h.mu.Unlock()
	if h.store == nil {
		return
	}
	if err := h.store.IssueTab(ctx, id); err != nil {
		h.log.Warn("persist issued tab", "tab", session.Ref(id), "error", err)
	}
}

func (h *Hub) issuedTab(ctx context.Context, id string) bool {
	h.mu.Lock()
	_, ok := h.issued[id]
	h.mu.Unlock()
	if ok || h.store == nil {
		return ok
	}
	ok, err := h.store.TabIssued(ctx, id)
	if err != nil {
		h.log.Warn("look up issued tab", "tab", session.Ref(id), "error", err)
		return false
	}
	return ok
}

// tabID keeps an announced id only if this hub issued it. Any other id,
// including an empty one, is replaced with a fresh id.
func (h *Hub) tabID(ctx context.Context, announced string) string {
	if announced != "" && h.issuedTab(ctx, announced) {
		return announced
	}
	id := uuid.NewString()
	h.issue(ctx, id)
	if announced != "" {
		h.log.Info("replaced unknown tab id", "tab", session.Ref(id))
	}
	return id
}

// originPatterns allows the configured site and any extra hosts to open the
// websocket from a cross-origin page.
func originPatterns(cfg *config.Config) []string {
	var patterns []string
	if u, err := url.Parse(cfg.Site.Origin); err == nil && u.Host != "" {
		patterns = append(patterns, u.Host)
	}
	return append(patterns, cfg.HTTP.AllowedOrigins...)
}

// ServeHTTP upgrades the connection to WebSocket and bridges one tab.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.Config()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(cfg),
	})
	if err != nil {
		h.log.Error("ws accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx := r.Context()

	var hello inbound
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		h.log.Debug("ws closed before hello", "error", err)
		return
	}
	if hello.Type != MsgHello {
		_ = conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return
	}
	hello.Tab = h.tabID(ctx, hello.Tab)

	tab, err := newTab(h, conn, hello, cfg)
	if err != nil {
		h.log.Warn("rejecting tab", "error", err)
		_ = conn.Close(websocket.StatusInvalidFramePayloadData, "bad hello")
		return
	}
	tab.send(outbound{Type: CmdHello, Tab: tab.id})

	h.mu.Lock()
	h.tabs[tab] = struct{}{}
	n := len(h.tabs)
	latest := h.cfg
	h.mu.Unlock()
	if latest != cfg {
		tab.apply(latest)
	}
	metrics.TabsConnected.Inc()
	h.log.Info("tab connected", "tab", session.Ref(tab.id), "href", hello.Href, "tabs", n)

	tab.serve(ctx)

	h.mu.Lock()
	delete(h.tabs, tab)
	h.mu.Unlock()
	metrics.TabsConnected.Dec()
	h.log.Info("tab disconnected", "tab", session.Ref(tab.id))
}
