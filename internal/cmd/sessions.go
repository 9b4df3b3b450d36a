package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/session"
	"github.com/boozedog/loginflow/internal/store"
)

// openSessions opens the activity database (when configured) and the token
// backend named by cfg. The returned func releases both.
func openSessions(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Backend, *store.Store, func(), error) {
	var st *store.Store
	if cfg.Database != "" {
		var err error
		st, err = store.Open(cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Debug("database ready", "path", cfg.Database)
	}
	closeStore := func() {
		if st != nil {
			_ = st.Close()
		}
	}

	switch cfg.Session.Backend {
	case config.SessionMemory:
		return session.NewMemory(), st, closeStore, nil
	case config.SessionSQLite:
		if st == nil {
			return nil, nil, nil, fmt.Errorf("sqlite sessions need a database path")
		}
		return session.NewSQLite(st.DB()), st, closeStore, nil
	case config.SessionRedis:
		r, err := session.OpenRedis(ctx, cfg.Session.RedisURL, cfg.Session.TTL.Std())
		if err != nil {
			closeStore()
			return nil, nil, nil, err
		}
		log.Debug("redis sessions ready")
		return r, st, func() {
			_ = r.Close()
			closeStore()
		}, nil
	default:
		closeStore()
		return nil, nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
