package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Venue.Env != "devnet" {
		t.Errorf("default env got=%s want=devnet", cfg.Venue.Env)
	}
	if cfg.PollIntervalSeconds != 5 {
		t.Errorf("default poll interval got=%d want=5", cfg.PollIntervalSeconds)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("default listen got=%s", cfg.Server.Listen)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
venue:
  endpoint: https://gw.example.com
  env: mainnet-beta
server:
  listen: ":9090"
poll_interval_seconds: 10
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Venue.Endpoint != "https://gw.example.com" || cfg.Venue.Env != "mainnet-beta" {
		t.Errorf("venue got=%+v", cfg.Venue)
	}
	if cfg.Server.Listen != ":9090" || cfg.PollIntervalSeconds != 10 {
		t.Errorf("server/poll got listen=%s poll=%d", cfg.Server.Listen, cfg.PollIntervalSeconds)
	}
	// 没写的字段仍然拿默认值
	if cfg.Wallet.KeystorePath != "data/keystore" {
		t.Errorf("keystore default got=%s", cfg.Wallet.KeystorePath)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PERPDASH_VENUE_ENDPOINT", "https://override.example.com")
	t.Setenv("PERPDASH_WALLET_KEY", " base58key ")
	t.Setenv("PERPDASH_POLL_INTERVAL", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Venue.Endpoint != "https://override.example.com" {
		t.Errorf("endpoint override got=%s", cfg.Venue.Endpoint)
	}
	if cfg.Wallet.PrivateKey != "base58key" {
		t.Errorf("wallet key should be trimmed, got=%q", cfg.Wallet.PrivateKey)
	}
	if cfg.PollIntervalSeconds != 2 {
		t.Errorf("poll override got=%d", cfg.PollIntervalSeconds)
	}
}

func TestValidateRejectsBadEnv(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Venue.Env = "testnet"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown env should be rejected")
	}
}
