package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"WALLET_PROVIDER", "WALLET_RPC_URL", "CHAIN_RPC_URL", "BACKEND_URL", "GAS_LIMIT", "FIAT_DECIMALS", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BackendURL != defaultBackendURL {
		t.Fatalf("expected backend %s, got %s", defaultBackendURL, cfg.BackendURL)
	}
	if cfg.GasLimit != 21000 || cfg.FiatDecimals != 4 {
		t.Fatalf("unexpected transfer defaults: gas %d fiat %d", cfg.GasLimit, cfg.FiatDecimals)
	}
	if cfg.WalletProvider != WalletProviderRPC || cfg.WalletRPCURL != defaultChainRPCURL {
		t.Fatalf("expected rpc wallet on chain url, got %s %s", cfg.WalletProvider, cfg.WalletRPCURL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("CONFIRMATION_TIMEOUT", "45s")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.ConfirmationTimeout != 45*time.Second {
		t.Fatalf("expected 45s confirmation timeout, got %s", cfg.ConfirmationTimeout)
	}
	if cfg.HTTPTimeout != defaultHTTPTimeout {
		t.Fatalf("expected default http timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":      {"IDEMPOTENCY_TTL", "soon"},
		"bad gas limit":     {"GAS_LIMIT", "lots"},
		"zero gas limit":    {"GAS_LIMIT", "0"},
		"fiat out of range": {"FIAT_DECIMALS", "40"},
		"unknown provider":  {"WALLET_PROVIDER", "ledger"},
		"key without key":   {"WALLET_PROVIDER", "key"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("WALLET_PRIVATE_KEY", "")
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
