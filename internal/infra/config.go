package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gem_exchange/internal/domain"
)

// Config holds all application settings. Sensitive values can be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		TickIntervalMS int                  `yaml:"tick_interval_ms"`
		HistorySize    int                  `yaml:"history_size"`
		DepthLevels    int                  `yaml:"depth_levels"`
		TradePrints    int                  `yaml:"trade_prints"`
		DepthStep      float64              `yaml:"depth_step"`
		TradeJitter    float64              `yaml:"trade_jitter"`
		ActivePair     string               `yaml:"active_pair"`
		Seed           int64                `yaml:"seed"` // 0 = time-based
		Pairs          []domain.TrackedPair `yaml:"pairs"`
	} `yaml:"market"`

	Wallet struct {
		// Starting demo balances: symbol -> amount.
		Balances map[string]float64 `yaml:"balances"`
		Quote    string             `yaml:"quote"` // Quote asset symbol (e.g., "USDT")
	} `yaml:"wallet"`

	AI struct {
		APIURL     string `yaml:"api_url"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"ai"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Market.TickIntervalMS <= 0 {
		return &domain.ConfigError{Field: "market.tick_interval_ms", Err: fmt.Errorf("must be positive")}
	}
	if c.Market.HistorySize <= 0 {
		return &domain.ConfigError{Field: "market.history_size", Err: fmt.Errorf("must be positive")}
	}
	if len(c.Market.Pairs) == 0 {
		return &domain.ConfigError{Field: "market.pairs", Err: fmt.Errorf("at least one pair is required")}
	}
	for _, p := range c.Market.Pairs {
		if p.BasePrice <= 0 {
			return &domain.ConfigError{Field: "market.pairs", Err: fmt.Errorf("base price for %s must be positive", p.DisplayName)}
		}
		if _, _, ok := domain.SplitPair(p.DisplayName); !ok {
			return &domain.ConfigError{Field: "market.pairs", Err: fmt.Errorf("display name %q is not BASE/QUOTE", p.DisplayName)}
		}
	}
	if c.Market.ActivePair != "" && !c.hasPair(c.Market.ActivePair) {
		return &domain.ConfigError{Field: "market.active_pair", Err: fmt.Errorf("%q is not a tracked pair", c.Market.ActivePair)}
	}
	if c.Server.Addr == "" {
		return &domain.ConfigError{Field: "server.addr", Err: fmt.Errorf("is required")}
	}
	return nil
}

func (c *Config) hasPair(name string) bool {
	for _, p := range c.Market.Pairs {
		if p.DisplayName == name {
			return true
		}
	}
	return false
}

// overrideWithEnv applies environment variables over the loaded file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("GEM_AI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if url := os.Getenv("GEM_AI_API_URL"); url != "" {
		cfg.AI.APIURL = url
	}
	if addr := os.Getenv("GEM_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
}
