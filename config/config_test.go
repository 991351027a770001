package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakevault.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress == "" || cfg.DataDir == "" {
		t.Fatalf("default config incomplete: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}

	// A second load reads the file back identically.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ListenAddress != cfg.ListenAddress || again.StakeAsset != cfg.StakeAsset {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadParsesRateAndFunding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakevault.toml")
	content := `
ListenAddress = "0.0.0.0:9000"
RewardRatePerSec = "250"
RewardVaultFund = "1000000"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rate, err := cfg.RewardRate()
	if err != nil {
		t.Fatalf("reward rate: %v", err)
	}
	if rate.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("rate = %s, want 250", rate)
	}
	fund, err := cfg.VaultFunding()
	if err != nil {
		t.Fatalf("vault funding: %v", err)
	}
	if fund.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("funding = %s, want 1000000", fund)
	}
	// Unset fields fall back to defaults.
	if cfg.StakeAsset != "STK" || cfg.RateLimitPerMin != 600 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakevault.toml")
	content := `RewardRatePerSec = "not-a-number"`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid rate")
	}
}
