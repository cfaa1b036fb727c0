// Package config handles configuration loading for conductor.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conductor.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
}

// AnthropicConfig holds backend API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// BudgetConfig holds the cost governance settings.
type BudgetConfig struct {
	// DailyCeilingUSD is the global daily spend ceiling.
	DailyCeilingUSD float64 `mapstructure:"daily_ceiling_usd"`
	// AgentCeilingsUSD holds optional per-agent daily sub-ceilings.
	AgentCeilingsUSD map[string]float64 `mapstructure:"agent_ceilings_usd"`
	// WarningThreshold is the fraction of the ceiling (0.0-1.0) at which
	// a non-blocking warning fires.
	WarningThreshold float64 `mapstructure:"warning_threshold"`
	// LedgerPath is the SQLite file for usage records; empty keeps the
	// ledger in memory only.
	LedgerPath string `mapstructure:"ledger_path"`
}

// AgentsConfig holds instruction store settings.
type AgentsConfig struct {
	// Dir is the agent definition directory (agents.yaml, prompts/, knowledge/).
	Dir string `mapstructure:"dir"`
	// CacheSize bounds the identity LRU cache.
	CacheSize int `mapstructure:"cache_size"`
	// Watch enables fsnotify-based cache invalidation on definition changes.
	Watch bool `mapstructure:"watch"`
}

// ToolsConfig holds tool layer settings.
type ToolsConfig struct {
	// BlockedDomains lists domains rejected by the compliance check.
	BlockedDomains []string `mapstructure:"blocked_domains"`
	// RateLimitPerMinute is the default per-tool sliding-window limit.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	// CostsUSD maps tool names to a fixed per-invocation cost counted in a
	// run's usage totals.
	CostsUSD map[string]float64 `mapstructure:"costs_usd"`
	// BraveAPIKey enables the Brave web search backend.
	BraveAPIKey string `mapstructure:"brave_api_key"`
	// SerpAPIKey enables the SerpAPI web search backend.
	SerpAPIKey string `mapstructure:"serpapi_key"`
	// ContextDBPath is the SQLite file backing the store_context tool.
	ContextDBPath string `mapstructure:"context_db_path"`
}

// TimeoutsConfig bounds the suspension points of a run.
type TimeoutsConfig struct {
	// ModelCall bounds a single backend call.
	ModelCall time.Duration `mapstructure:"model_call"`
	// ToolCall bounds a single tool invocation.
	ToolCall time.Duration `mapstructure:"tool_call"`
	// Run bounds a whole agent run.
	Run time.Duration `mapstructure:"run"`
}

// ApprovalConfig holds the human-approval gate settings.
type ApprovalConfig struct {
	// FinancialThresholdUSD triggers the financial risk category when a
	// result proposes spend at or above this amount.
	FinancialThresholdUSD float64 `mapstructure:"financial_threshold_usd"`
	// AutoApprove approves matching results without blocking; intended for
	// development environments only.
	AutoApprove bool `mapstructure:"auto_approve"`
}

// Load loads configuration with the following precedence (highest first):
// environment variables, project config (.conductor.yaml in the current
// directory or a parent), user config (~/.config/conductor/config.yaml),
// built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := findProjectConfig(); project != "" {
		pv := viper.New()
		pv.SetConfigFile(project)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CONDUCTOR")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("tools.brave_api_key", "BRAVE_API_KEY")
	v.BindEnv("tools.serpapi_key", "SERPAPI_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("budget.daily_ceiling_usd", 50.0)
	v.SetDefault("budget.warning_threshold", 0.80)
	v.SetDefault("budget.ledger_path", "")

	v.SetDefault("agents.dir", "config")
	v.SetDefault("agents.cache_size", 32)
	v.SetDefault("agents.watch", false)

	v.SetDefault("tools.rate_limit_per_minute", 60)
	v.SetDefault("tools.blocked_domains", []string{})
	v.SetDefault("tools.context_db_path", "")
	// Search calls are metered by the providers; the other builtins are free.
	v.SetDefault("tools.costs_usd", map[string]float64{"web_search": 0.005})

	v.SetDefault("timeouts.model_call", "2m")
	v.SetDefault("timeouts.tool_call", "30s")
	v.SetDefault("timeouts.run", "10m")

	v.SetDefault("approval.financial_threshold_usd", 1000.0)
	v.SetDefault("approval.auto_approve", false)
}

// userConfigDir returns the XDG config directory for conductor.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "conductor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}
