// Package decisions records the reviewer's cooperate/suspend verdict per company.
package decisions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Store persists decisions keyed by company name.
type Store interface {
	SetDecision(ctx context.Context, company string, decision types.Decision) error
	ClearDecision(ctx context.Context, company string) error
	GetDecision(ctx context.Context, company string) (*types.Decision, error)
	AllDecisions(ctx context.Context) (map[string]types.Decision, error)
}

// Parse validates a decision string. An empty string means "clear" and returns "".
func Parse(s string) (types.Decision, error) {
	switch d := types.Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case "", types.DecisionCooperate, types.DecisionSuspend:
		return d, nil
	default:
		return "", fmt.Errorf("decision must be 'cooperate', 'suspend', or empty, got %q", s)
	}
}

// Apply sets or clears a company's decision depending on whether d is empty.
func Apply(ctx context.Context, s Store, company string, d types.Decision) error {
	if d == "" {
		return s.ClearDecision(ctx, company)
	}
	return s.SetDecision(ctx, company, d)
}

// MemoryStore is an in-process Store. The zero value is not usable; call NewMemoryStore.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]types.Decision
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[string]types.Decision)}
}

func (m *MemoryStore) SetDecision(_ context.Context, company string, decision types.Decision) error {
	if _, err := Parse(string(decision)); err != nil || decision == "" {
		return fmt.Errorf("invalid decision %q for %s", decision, company)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[company] = decision
	return nil
}

func (m *MemoryStore) ClearDecision(_ context.Context, company string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.decisions, company)
	return nil
}

// GetDecision returns nil when the company has no decision.
func (m *MemoryStore) GetDecision(_ context.Context, company string) (*types.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[company]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// AllDecisions returns a copy of every decision.
func (m *MemoryStore) AllDecisions(_ context.Context) (map[string]types.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.Decision, len(m.decisions))
	for k, v := range m.decisions {
		out[k] = v
	}
	return out, nil
}
