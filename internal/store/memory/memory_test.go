package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

func TestPositionStoreOpenLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewPositionStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	p := domain.Position{ID: "p1", AgentID: "a", TokenMint: "T", Quantity: decimal.NewFromInt(5), OpenedAt: t0, TargetsHit: []int{}}
	if err := s.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, domain.Position{ID: "p2", AgentID: "a", TokenMint: "T"}); err == nil {
		t.Fatalf("Create() second open position error = nil")
	}

	got, err := s.GetOpen(ctx, "a", "T")
	if err != nil || got.ID != "p1" {
		t.Fatalf("GetOpen() = %+v, %v", got, err)
	}

	// Mutating the returned copy must not leak into the store.
	got.TargetsHit = append(got.TargetsHit, 0)
	again, _ := s.GetOpen(ctx, "a", "T")
	if len(again.TargetsHit) != 0 {
		t.Fatalf("stored TargetsHit = %v, want empty", again.TargetsHit)
	}

	closed := t0.Add(time.Hour)
	got.ClosedAt = &closed
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := s.GetOpen(ctx, "a", "T"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetOpen() after close error = %v, want ErrNotFound", err)
	}
	if err := s.Create(ctx, domain.Position{ID: "p3", AgentID: "a", TokenMint: "T", OpenedAt: closed}); err != nil {
		t.Fatalf("Create() after close error = %v", err)
	}

	closedList, _ := s.ListClosed(ctx, "a", domain.ListOpts{})
	if len(closedList) != 1 || closedList[0].ID != "p1" {
		t.Fatalf("ListClosed() = %+v", closedList)
	}
}

func TestPositionStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewPositionStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	closed := t0

	seed := []domain.Position{
		{ID: "1", AgentID: "a", TokenMint: "X", OpenedAt: t0.Add(2 * time.Minute)},
		{ID: "2", AgentID: "a", TokenMint: "Y", OpenedAt: t0.Add(time.Minute), ClosedAt: &closed},
		{ID: "3", AgentID: "b", TokenMint: "X", OpenedAt: t0},
	}
	for _, p := range seed {
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter domain.PositionFilter
		want   []string
	}{
		{"all agents", domain.PositionFilter{}, []string{"3", "2", "1"}},
		{"one agent", domain.PositionFilter{AgentID: "a"}, []string{"2", "1"}},
		{"open only", domain.PositionFilter{OpenOnly: true}, []string{"3", "1"}},
		{"unknown agent", domain.PositionFilter{AgentID: "z"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestTradeStoreNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3"} {
		rec := domain.TradeRecord{ID: id, AgentID: "a"}
		rec.ExecutedAt = t0.Add(time.Duration(i) * time.Minute)
		_ = s.Insert(ctx, rec)
	}
	_ = s.Insert(ctx, domain.TradeRecord{ID: "other", AgentID: "b"})

	got, _ := s.ListByAgent(ctx, "a", domain.ListOpts{Limit: 2})
	if len(got) != 2 || got[0].ID != "t3" || got[1].ID != "t2" {
		t.Fatalf("ListByAgent() = %+v", got)
	}
	got, _ = s.ListByAgent(ctx, "a", domain.ListOpts{Offset: 5})
	if len(got) != 0 {
		t.Fatalf("ListByAgent(offset past end) len = %d, want 0", len(got))
	}
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	_ = s.Log(ctx, "trade.executed", map[string]any{"agent_id": "a"})
	_ = s.Log(ctx, "trade.failed", map[string]any{"agent_id": "a"})

	got, _ := s.List(ctx, domain.ListOpts{})
	if len(got) != 2 || got[0].Event != "trade.failed" || got[1].ID != 1 {
		t.Fatalf("List() = %+v", got)
	}
}
