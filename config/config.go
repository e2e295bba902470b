package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for the lending daemon.
type Config struct {
	RPCAddress      string  `toml:"RPCAddress"`
	DataDir         string  `toml:"DataDir"`
	Environment     string  `toml:"Environment"`
	RPCAuthToken    string  `toml:"RPCAuthToken,omitempty"`
	ModuleAddress   string  `toml:"ModuleAddress"`
	VaultAddress    string  `toml:"VaultAddress"`
	LoanAssetSymbol string  `toml:"LoanAssetSymbol"`
	BaseAssetSymbol string  `toml:"BaseAssetSymbol"`
	Lending         Lending `toml:"lending"`
}

// Lending groups the immutable engine parameters.
type Lending struct {
	CollateralizationRatio uint64 `toml:"CollateralizationRatio"`
	LiquidationRatio       uint64 `toml:"LiquidationRatio"`
	InterestRatePerYear    uint64 `toml:"InterestRatePerYear"`
	// CollateralPrice is the fixed base-asset price in loan-asset units,
	// kept as a decimal string so smallest-unit precision survives TOML.
	CollateralPrice string `toml:"CollateralPrice"`
}

// Load loads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown keys: %v", path, undecoded)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if c.Lending.CollateralizationRatio == 0 {
		return fmt.Errorf("config: lending.CollateralizationRatio must be positive")
	}
	if c.Lending.LiquidationRatio == 0 {
		return fmt.Errorf("config: lending.LiquidationRatio must be positive")
	}
	if _, err := c.CollateralPrice(); err != nil {
		return err
	}
	return nil
}

// CollateralPrice parses the configured price into an integer amount of
// loan-asset units per base-asset unit.
func (c *Config) CollateralPrice() (*big.Int, error) {
	raw := strings.TrimSpace(c.Lending.CollateralPrice)
	price, ok := new(big.Int).SetString(raw, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("config: lending.CollateralPrice must be a positive integer, got %q", raw)
	}
	return price, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.LoanAssetSymbol) == "" {
		cfg.LoanAssetSymbol = "LOAN"
	}
	if strings.TrimSpace(cfg.BaseAssetSymbol) == "" {
		cfg.BaseAssetSymbol = "BASE"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:      "127.0.0.1:8645",
		DataDir:         "./loanledger-data",
		Environment:     "local",
		ModuleAddress:   "0x00000000000000000000000000000000000000A0",
		VaultAddress:    "0x00000000000000000000000000000000000000A1",
		LoanAssetSymbol: "LOAN",
		BaseAssetSymbol: "BASE",
		Lending: Lending{
			CollateralizationRatio: 150,
			LiquidationRatio:       110,
			InterestRatePerYear:    5,
			CollateralPrice:        "1000",
		},
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory for default config: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: write default config: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode default config: %w", err)
	}
	return cfg, nil
}
