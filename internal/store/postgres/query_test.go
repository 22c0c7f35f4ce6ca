package postgres

import (
	"testing"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

func TestWithListOpts(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	tests := []struct {
		name      string
		opts      domain.ListOpts
		wantQuery string
		wantArgs  int
	}{
		{
			name:      "no options",
			wantQuery: "SELECT 1 WHERE agent_id = $1 ORDER BY executed_at DESC",
			wantArgs:  1,
		},
		{
			name:      "window and page",
			opts:      domain.ListOpts{Since: &since, Until: &until, Limit: 10, Offset: 20},
			wantQuery: "SELECT 1 WHERE agent_id = $1 AND executed_at >= $2 AND executed_at <= $3 ORDER BY executed_at DESC LIMIT $4 OFFSET $5",
			wantArgs:  5,
		},
		{
			name:      "offset only",
			opts:      domain.ListOpts{Offset: 5},
			wantQuery: "SELECT 1 WHERE agent_id = $1 ORDER BY executed_at DESC OFFSET $2",
			wantArgs:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := withListOpts("SELECT 1 WHERE agent_id = $1", []any{"a"}, "executed_at", tt.opts)
			if q != tt.wantQuery {
				t.Errorf("query = %q, want %q", q, tt.wantQuery)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://x@y/z", Host: "ignored"},
			want: "postgres://x@y/z",
		},
		{
			name: "defaults port and sslmode",
			cfg:  ClientConfig{Host: "db", Database: "tradecore", User: "u", Password: "p"},
			want: "postgres://u:p@db:5432/tradecore?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
