package lending

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lendfi.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	owner := makeAddress(0x10).String()
	oracle := makeAddress(0x11).String()
	ledgerAddr := makeAddress(0xAA).String()
	path := writeConfigFile(t, `
[controller]
Owner = "`+owner+`"
Oracle = "`+oracle+`"

[[ledger]]
Owner = "`+owner+`"
Asset = "NUSD"
LedgerAddress = "`+ledgerAddr+`"
CollateralFactorBps = 7500
InitialExchangeRateWei = "2000000000000000000"

[[ledger]]
Owner = "`+owner+`"
Asset = " ETH "
LedgerAddress = "`+ledgerAddr+`"
CollateralFactorBps = 5000
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Controller.Oracle != oracle {
		t.Fatalf("unexpected oracle %q", cfg.Controller.Oracle)
	}
	if len(cfg.Ledgers) != 2 {
		t.Fatalf("expected two ledgers, got %d", len(cfg.Ledgers))
	}
	want := new(big.Int).Mul(big.NewInt(2), Ray())
	if cfg.Ledgers[0].InitialExchangeRateWei.Cmp(want) != 0 {
		t.Fatalf("expected configured rate %s, got %s", want, cfg.Ledgers[0].InitialExchangeRateWei)
	}
	// The second ledger omits the rate and falls back to the default.
	if cfg.Ledgers[1].InitialExchangeRateWei.Cmp(Ray()) != 0 {
		t.Fatalf("expected default rate, got %s", cfg.Ledgers[1].InitialExchangeRateWei)
	}
	if cfg.Ledgers[1].Asset != "ETH" {
		t.Fatalf("expected trimmed asset, got %q", cfg.Ledgers[1].Asset)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestConfigValidate(t *testing.T) {
	owner := makeAddress(0x10).String()
	oracle := makeAddress(0x11).String()
	ledgerAddr := makeAddress(0xAA).String()
	base := func() Config {
		return Config{
			Controller: ControllerConfig{Owner: owner, Oracle: oracle},
			Ledgers: []LedgerConfig{
				{Asset: "NUSD", LedgerAddress: ledgerAddr, CollateralFactorBps: 7500},
			},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "missing oracle",
			mutate:  func(c *Config) { c.Controller.Oracle = "" },
			message: "oracle required",
		},
		{
			name:    "missing asset",
			mutate:  func(c *Config) { c.Ledgers[0].Asset = "  " },
			message: "asset required",
		},
		{
			name: "duplicate asset",
			mutate: func(c *Config) {
				c.Ledgers = append(c.Ledgers, c.Ledgers[0])
			},
			message: "duplicate ledger",
		},
		{
			name:    "missing ledger address",
			mutate:  func(c *Config) { c.Ledgers[0].LedgerAddress = "" },
			message: "address required",
		},
		{
			name:    "collateral factor above 100%",
			mutate:  func(c *Config) { c.Ledgers[0].CollateralFactorBps = 10_001 },
			message: "collateral factor",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected message containing %q, got %v", tc.message, err)
			}
		})
	}
}
