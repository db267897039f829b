package lending

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"
)

// ControllerConfig captures the controller deployment identities.
type ControllerConfig struct {
	Owner  string `toml:"Owner"`
	Oracle string `toml:"Oracle"`
}

// LedgerConfig captures the deployment configuration for one market ledger.
type LedgerConfig struct {
	Owner                  string   `toml:"Owner"`
	Asset                  string   `toml:"Asset"`
	Controller             string   `toml:"Controller"`
	LedgerAddress          string   `toml:"LedgerAddress"`
	CollateralFactorBps    uint64   `toml:"CollateralFactorBps"`
	InitialExchangeRateWei *big.Int `toml:"InitialExchangeRateWei"`
}

// Config is the full protocol deployment file.
type Config struct {
	Controller ControllerConfig `toml:"controller"`
	Ledgers    []LedgerConfig   `toml:"ledger"`
}

// EnsureDefaults populates nil numeric fields so decoding partial files is
// safe.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	for i := range c.Ledgers {
		if c.Ledgers[i].InitialExchangeRateWei == nil || c.Ledgers[i].InitialExchangeRateWei.Sign() <= 0 {
			c.Ledgers[i].InitialExchangeRateWei = Ray()
		}
		c.Ledgers[i].Asset = strings.TrimSpace(c.Ledgers[i].Asset)
	}
}

// Validate reports the first structural problem with the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: empty")
	}
	if strings.TrimSpace(c.Controller.Owner) == "" {
		return fmt.Errorf("config: controller owner required")
	}
	if strings.TrimSpace(c.Controller.Oracle) == "" {
		return fmt.Errorf("config: controller oracle required")
	}
	seen := make(map[string]struct{}, len(c.Ledgers))
	for _, ledger := range c.Ledgers {
		asset := strings.TrimSpace(ledger.Asset)
		if asset == "" {
			return fmt.Errorf("config: ledger asset required")
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("config: duplicate ledger for asset %s", asset)
		}
		seen[asset] = struct{}{}
		if strings.TrimSpace(ledger.LedgerAddress) == "" {
			return fmt.Errorf("config: ledger address required for asset %s", asset)
		}
		if ledger.CollateralFactorBps > 10_000 {
			return fmt.Errorf("config: collateral factor exceeds 100%% for asset %s", asset)
		}
	}
	return nil
}

// LoadConfig reads and validates a TOML deployment file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
