package session

import (
	"context"
	"sync"
)

// Memory is an in-process Backend.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]string)}
}

func (m *Memory) Load(_ context.Context, tab string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[tab]
	return tok, ok, nil
}

func (m *Memory) Save(_ context.Context, tab, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tab] = token
	return nil
}

func (m *Memory) Delete(_ context.Context, tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tab)
	return nil
}

// Len reports how many tabs currently hold a token.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
