// Package memory provides in-process implementations of the domain stores
// for single-node deployments and tests. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// PositionStore implements domain.PositionStore on a map.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]domain.Position // id -> position
}

// NewPositionStore creates an empty PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]domain.Position)}
}

// Create inserts a new position. It refuses a second open position for
// the same agent and token.
func (s *PositionStore) Create(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; ok {
		return fmt.Errorf("memory: create position %s: already exists", p.ID)
	}
	if p.IsOpen() {
		if _, ok := s.findOpen(p.AgentID, p.TokenMint); ok {
			return fmt.Errorf("memory: create position %s: open position exists for %s", p.ID, domain.PositionKey(p.AgentID, p.TokenMint))
		}
	}
	s.positions[p.ID] = clonePosition(p)
	return nil
}

// Update replaces a stored position.
func (s *PositionStore) Update(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; !ok {
		return fmt.Errorf("memory: update position %s: %w", p.ID, domain.ErrNotFound)
	}
	s.positions[p.ID] = clonePosition(p)
	return nil
}

// GetOpen returns the open position for the pair or domain.ErrNotFound.
func (s *PositionStore) GetOpen(_ context.Context, agentID, tokenMint string) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.findOpen(agentID, tokenMint)
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: open position %s: %w", domain.PositionKey(agentID, tokenMint), domain.ErrNotFound)
	}
	return clonePosition(p), nil
}

// List returns positions matching filter, oldest first.
func (s *PositionStore) List(_ context.Context, filter domain.PositionFilter) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if filter.AgentID != "" && p.AgentID != filter.AgentID {
			continue
		}
		if filter.OpenOnly && !p.IsOpen() {
			continue
		}
		out = append(out, clonePosition(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

// ListClosed returns an agent's closed positions, most recently closed
// first, honouring opts.
func (s *PositionStore) ListClosed(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for _, p := range s.positions {
		if p.AgentID != agentID || p.IsOpen() {
			continue
		}
		if opts.Since != nil && p.ClosedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && p.ClosedAt.After(*opts.Until) {
			continue
		}
		out = append(out, clonePosition(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(*out[j].ClosedAt) })
	return paginate(out, opts), nil
}

func (s *PositionStore) findOpen(agentID, tokenMint string) (domain.Position, bool) {
	for _, p := range s.positions {
		if p.AgentID == agentID && p.TokenMint == tokenMint && p.IsOpen() {
			return p, true
		}
	}
	return domain.Position{}, false
}

func clonePosition(p domain.Position) domain.Position {
	p.TargetsHit = slices.Clone(p.TargetsHit)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		p.ClosedAt = &t
	}
	return p
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

var _ domain.PositionStore = (*PositionStore)(nil)
