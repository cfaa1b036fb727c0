package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Budget.DailyCeilingUSD != 50.0 {
		t.Errorf("expected default daily ceiling 50.0, got %v", cfg.Budget.DailyCeilingUSD)
	}
	if cfg.Budget.WarningThreshold != 0.80 {
		t.Errorf("expected warning threshold 0.80, got %v", cfg.Budget.WarningThreshold)
	}
	if cfg.Agents.CacheSize != 32 {
		t.Errorf("expected cache size 32, got %d", cfg.Agents.CacheSize)
	}
	if cfg.Timeouts.ModelCall != 2*time.Minute {
		t.Errorf("expected model call timeout 2m, got %v", cfg.Timeouts.ModelCall)
	}
	if cfg.Tools.RateLimitPerMinute != 60 {
		t.Errorf("expected rate limit 60/min, got %d", cfg.Tools.RateLimitPerMinute)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
budget:
  daily_ceiling_usd: 10.0
  warning_threshold: 0.9
  agent_ceilings_usd:
    analyst: 4.0
tools:
  blocked_domains:
    - badsite.example
timeouts:
  model_call: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Budget.DailyCeilingUSD != 10.0 {
		t.Errorf("expected ceiling 10.0, got %v", cfg.Budget.DailyCeilingUSD)
	}
	if cfg.Budget.AgentCeilingsUSD["analyst"] != 4.0 {
		t.Errorf("expected analyst ceiling 4.0, got %v", cfg.Budget.AgentCeilingsUSD["analyst"])
	}
	if len(cfg.Tools.BlockedDomains) != 1 || cfg.Tools.BlockedDomains[0] != "badsite.example" {
		t.Errorf("unexpected blocked domains: %v", cfg.Tools.BlockedDomains)
	}
	if cfg.Timeouts.ModelCall != 30*time.Second {
		t.Errorf("expected 30s model timeout, got %v", cfg.Timeouts.ModelCall)
	}
	// Values absent from the file keep their defaults.
	if cfg.Timeouts.ToolCall != 30*time.Second {
		t.Errorf("expected default tool timeout, got %v", cfg.Timeouts.ToolCall)
	}
	if cfg.Tools.CostsUSD["web_search"] != 0.005 {
		t.Errorf("expected default web_search cost 0.005, got %v", cfg.Tools.CostsUSD["web_search"])
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", "(not set)"},
		{"short", "sk-ant-123", "***"},
		{"full", "sk-ant-REDACTED", "sk-ant-...wxyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.want {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
