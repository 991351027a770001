package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's runtime settings.
type Config struct {
	ListenAddress    string  `toml:"ListenAddress"`
	DataDir          string  `toml:"DataDir"`
	NetworkName      string  `toml:"NetworkName"`
	RewardRatePerSec string  `toml:"RewardRatePerSec"`
	StakeAsset       string  `toml:"StakeAsset"`
	RewardAsset      string  `toml:"RewardAsset"`
	RewardVaultFund  string  `toml:"RewardVaultFund"`
	AdminJWTSecret   string  `toml:"AdminJWTSecret"`
	RateLimitPerMin  float64 `toml:"RateLimitPerMin"`
	Log              Log     `toml:"Log"`
}

// Log controls structured logging output and optional file rotation.
type Log struct {
	Environment string `toml:"Environment"`
	FilePath    string `toml:"FilePath"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:    "127.0.0.1:8645",
		DataDir:          "./data",
		NetworkName:      "stakevault-local",
		RewardRatePerSec: "0",
		StakeAsset:       "STK",
		RewardAsset:      "RWD",
		RewardVaultFund:  "0",
		RateLimitPerMin:  600,
		Log: Log{
			Environment: "dev",
			MaxSizeMB:   64,
			MaxBackups:  4,
			MaxAgeDays:  14,
		},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = def.DataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(cfg.RewardRatePerSec) == "" {
		cfg.RewardRatePerSec = def.RewardRatePerSec
	}
	if strings.TrimSpace(cfg.StakeAsset) == "" {
		cfg.StakeAsset = def.StakeAsset
	}
	if strings.TrimSpace(cfg.RewardAsset) == "" {
		cfg.RewardAsset = def.RewardAsset
	}
	if strings.TrimSpace(cfg.RewardVaultFund) == "" {
		cfg.RewardVaultFund = def.RewardVaultFund
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = def.RateLimitPerMin
	}
	if strings.TrimSpace(cfg.Log.Environment) == "" {
		cfg.Log.Environment = def.Log.Environment
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := c.RewardRate(); err != nil {
		return err
	}
	if _, err := c.VaultFunding(); err != nil {
		return err
	}
	if c.StakeAsset == c.RewardAsset && strings.TrimSpace(c.StakeAsset) == "" {
		return fmt.Errorf("config: asset symbols must be set")
	}
	return nil
}

// RewardRate parses the configured emission rate.
func (c *Config) RewardRate() (*big.Int, error) {
	rate, ok := new(big.Int).SetString(strings.TrimSpace(c.RewardRatePerSec), 10)
	if !ok || rate.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid RewardRatePerSec %q", c.RewardRatePerSec)
	}
	return rate, nil
}

// VaultFunding parses the initial reward vault balance minted at startup.
func (c *Config) VaultFunding() (*big.Int, error) {
	fund, ok := new(big.Int).SetString(strings.TrimSpace(c.RewardVaultFund), 10)
	if !ok || fund.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid RewardVaultFund %q", c.RewardVaultFund)
	}
	return fund, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
