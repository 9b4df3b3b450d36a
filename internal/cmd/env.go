package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boozedog/loginflow/internal/backend"
	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/session"
	"github.com/boozedog/loginflow/internal/store"
)

// cliTab is the tab id the command line keeps its token under.
const cliTab = "cli"

// cliEnv is what the login, check and logout commands share.
type cliEnv struct {
	cfg     *config.Config
	site    config.Site
	log     *slog.Logger
	tokens  session.Store
	client  *backend.Client
	store   *store.Store
	release func()
}

func (o *rootOptions) openEnv(cmd *cobra.Command, siteID string) (*cliEnv, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if siteID != "" {
		cfg.Site.ID = siteID
	}
	log := newLogger(cmd.ErrOrStderr(), parseLevel(cfg.LogLevel), nil)

	sessions, st, release, err := openSessions(cmd.Context(), cfg, log)
	if err != nil {
		return nil, err
	}
	site := cfg.SiteSettings()
	return &cliEnv{
		cfg:     cfg,
		site:    site,
		log:     log,
		tokens:  session.ForTab(sessions, cliTab),
		client:  backend.New(site.Endpoints, backend.NewHTTPClient(cfg.Backend.Timeout.Std()), log),
		store:   st,
		release: release,
	}, nil
}

// pageURL places path on the site origin.
func (e *cliEnv) pageURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.site.Origin + path
}

func (e *cliEnv) record(ctx context.Context, kind, path, outcome string) {
	if e.store == nil {
		return
	}
	err := e.store.RecordActivity(ctx, store.Activity{Tab: session.Ref(cliTab), Kind: kind, Path: path, Outcome: outcome})
	if err != nil {
		e.log.Warn("record activity", "error", err)
	}
}
