// Package session holds the opaque session token issued by the
// authentication backend. Tokens are scoped to one browser tab and are never
// interpreted locally.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNoTab is returned when a tab-scoped store is used without a tab id.
var ErrNoTab = errors.New("session: empty tab id")

// Store is the token lifecycle seen by the login handler and the route guard.
type Store interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Backend keeps tokens for many tabs.
type Backend interface {
	Load(ctx context.Context, tab string) (string, bool, error)
	Save(ctx context.Context, tab, token string) error
	Delete(ctx context.Context, tab string) error
}

// Ref returns a short one-way reference to tab for logs and activity rows.
// The tab id itself keys the token and must not leave the process.
func Ref(tab string) string {
	sum := sha256.Sum256([]byte(tab))
	return hex.EncodeToString(sum[:6])
}

// ForTab binds a backend to a single tab.
func ForTab(b Backend, tab string) Store {
	return &tabStore{backend: b, tab: tab}
}

type tabStore struct {
	backend Backend
	tab     string
}

func (s *tabStore) Get(ctx context.Context) (string, bool, error) {
	if s.tab == "" {
		return "", false, ErrNoTab
	}
	return s.backend.Load(ctx, s.tab)
}

func (s *tabStore) Set(ctx context.Context, token string) error {
	if s.tab == "" {
		return ErrNoTab
	}
	if token == "" {
		return s.backend.Delete(ctx, s.tab)
	}
	return s.backend.Save(ctx, s.tab, token)
}

func (s *tabStore) Clear(ctx context.Context) error {
	if s.tab == "" {
		return ErrNoTab
	}
	return s.backend.Delete(ctx, s.tab)
}
