package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"ladder not increasing", func(c *Config) { c.Positions.Milestones = []float64{2, 1.5} }, "positions: milestones"},
		{"empty ladder", func(c *Config) { c.Positions.Milestones = nil }, "ladder is empty"},
		{"zero attempts", func(c *Config) { c.Executor.MaxAttempts = 0 }, "max_attempts"},
		{"fee ceiling below initial", func(c *Config) { c.Executor.MaxPriorityFee = 1 }, "max_priority_fee_lamports"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }, "unknown backend"},
		{"postgres without host", func(c *Config) {
			c.Storage.Backend = "postgres"
			c.Postgres.Host = ""
		}, "postgres: host"},
		{"bad risk amount", func(c *Config) { c.Risk.MaxBuyNative = "lots" }, "max_buy_native"},
		{"negative risk amount", func(c *Config) { c.Risk.MaxBuyNative = "-1" }, "max_buy_native"},
		{"agent without key", func(c *Config) { c.Agents = []AgentConfig{{ID: "a"}} }, "private_key or encrypted_key_path"},
		{"duplicate agent", func(c *Config) {
			c.Agents = []AgentConfig{{ID: "a", PrivateKey: "k"}, {ID: "a", PrivateKey: "k"}}
		}, "duplicate id"},
		{"monitor without refresher", func(c *Config) { c.Mode = "monitor" }, "refresh_interval is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("Validate() error = nil")
	}
	for _, want := range []string{"unknown mode", "unknown log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want containing %q", err, want)
		}
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradecore.toml")
	const body = `
log_level = "debug"

[executor]
max_attempts = 5
confirm_timeout = "45s"

[positions]
milestones = [2.0, 4.0]
refresh_interval = "1m"

[[agents]]
id = "alpha-1"
private_key = "from-file"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRADECORE_SERVER_PORT", "9100")
	t.Setenv("TRADECORE_AGENT_ALPHA_1_PRIVATE_KEY", "from-env")
	t.Setenv("TRADECORE_RISK_MAX_BUY_NATIVE", "0.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Executor.MaxAttempts != 5 {
		t.Fatalf("file values not applied: log_level %q attempts %d", cfg.LogLevel, cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.ConfirmTimeout.Duration != 45*time.Second {
		t.Fatalf("ConfirmTimeout = %v, want 45s", cfg.Executor.ConfirmTimeout.Duration)
	}
	if cfg.Executor.SlippageBps != 100 {
		t.Fatalf("SlippageBps = %d, want default 100", cfg.Executor.SlippageBps)
	}
	if got := cfg.Ladder(); len(got) != 2 || got[1] != 4 {
		t.Fatalf("Ladder() = %v, want [2 4]", got)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Agents[0].PrivateKey != "from-env" {
		t.Fatalf("agent key = %q, want env override", cfg.Agents[0].PrivateKey)
	}
	if got := cfg.MaxBuyNative().String(); got != "0.5" {
		t.Fatalf("MaxBuyNative() = %s, want 0.5", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestEnvFloatSlice(t *testing.T) {
	tests := []struct {
		env  string
		want []float64
	}{
		{"1.5, 2,3", []float64{1.5, 2, 3}},
		{"1.5,x", []float64{9}},
	}
	for _, tt := range tests {
		t.Setenv("TRADECORE_TEST_FLOATS", tt.env)
		got := []float64{9}
		setFloatSlice(&got, "TRADECORE_TEST_FLOATS")
		if len(got) != len(tt.want) {
			t.Fatalf("setFloatSlice(%q) = %v, want %v", tt.env, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("setFloatSlice(%q) = %v, want %v", tt.env, got, tt.want)
			}
		}
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"alpha-1":   "ALPHA_1",
		"Bot.Two":   "BOT_TWO",
		"agent_007": "AGENT_007",
	}
	for in, want := range tests {
		if got := envName(in); got != want {
			t.Errorf("envName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "tok"
	cfg.Agents = []AgentConfig{{ID: "a", PrivateKey: "secret"}}

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != redacted || red.Notify.TelegramToken != redacted {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	if red.Agents[0].PrivateKey != redacted {
		t.Fatalf("agent key = %q, want redacted", red.Agents[0].PrivateKey)
	}
	if cfg.Agents[0].PrivateKey != "secret" {
		t.Fatalf("original agent key mutated to %q", cfg.Agents[0].PrivateKey)
	}
	if red.Redis.Password != "" {
		t.Fatalf("empty secret became %q, want empty", red.Redis.Password)
	}
}
