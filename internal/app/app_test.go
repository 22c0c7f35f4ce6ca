package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/config"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWireMemoryBackends(t *testing.T) {
	cfg := config.Defaults()

	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire() error = %v", err)
	}
	defer cleanup()

	if deps.EventBus != nil {
		t.Fatalf("EventBus = %T, want nil without redis", deps.EventBus)
	}
	if deps.Archiver != nil {
		t.Fatalf("Archiver = %T, want nil with s3 disabled", deps.Archiver)
	}
	if len(deps.Sweepers) != 2 {
		t.Fatalf("Sweepers = %d, want 2", len(deps.Sweepers))
	}
	if len(deps.Health) != 0 {
		t.Fatalf("Health = %v, want none", deps.Health)
	}
	if deps.Notifier != nil {
		t.Fatalf("Notifier set without senders")
	}

	a := New(&cfg, discard())
	svc := a.buildServices(deps)
	if svc.trades == nil || svc.portfolio == nil || svc.prices == nil || svc.positions == nil {
		t.Fatalf("buildServices() = %+v", svc)
	}
	if got := len(svc.positions.Ladder()); got != len(cfg.Positions.Milestones) {
		t.Fatalf("ladder len = %d, want %d", got, len(cfg.Positions.Milestones))
	}
}

func TestWireRedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Defaults()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"

	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire() error = %v", err)
	}
	defer cleanup()

	if deps.EventBus == nil {
		t.Fatalf("EventBus = nil, want redis bus")
	}
	if len(deps.Sweepers) != 0 {
		t.Fatalf("Sweepers = %d, want 0 with redis", len(deps.Sweepers))
	}
	check, ok := deps.Health["redis"]
	if !ok {
		t.Fatalf("Health has no redis probe")
	}
	if err := check(context.Background()); err != nil {
		t.Fatalf("redis probe error = %v", err)
	}
	if deps.Notifier == nil {
		t.Fatalf("Notifier = nil, want discord sender")
	}
}

func TestWireRejectsBadAgentKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Agents = []config.AgentConfig{{ID: "a", PrivateKey: "not-a-key"}}

	if _, _, err := Wire(context.Background(), &cfg, discard()); err == nil {
		t.Fatalf("Wire() error = nil, want keyring failure")
	}
}
