package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName             = "WalletConnector"
	defaultAppEnv              = "development"
	defaultPort                = "8080"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultShutdownDelay       = 10 * time.Second
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultChainRPCURL         = "http://localhost:8545"
	defaultBackendURL          = "http://localhost:3000"
	defaultPriceOracleURL      = "https://api.coingecko.com/api/v3"
	defaultPriceAsset          = "ethereum"
	defaultGasLimit            = 21000
	defaultFiatDecimals        = 4
	defaultHTTPTimeout         = 10 * time.Second
	defaultConfirmationTimeout = 2 * time.Minute
	defaultReceiptPoll         = 2 * time.Second
	defaultSubmitRateLimit     = 10
)

// Wallet provider kinds.
const (
	WalletProviderRPC  = "rpc"
	WalletProviderKey  = "key"
	WalletProviderNone = "none"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	ChainRPCURL         string
	WalletProvider      string
	WalletRPCURL        string
	WalletPrivateKey    string
	BackendURL          string
	PriceOracleURL      string
	PriceOracleProxy    string
	PriceAsset          string
	GasLimit            uint64
	FiatDecimals        int32
	HTTPTimeout         time.Duration
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	SubmitRateLimit     int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ChainRPCURL:      getEnv("CHAIN_RPC_URL", defaultChainRPCURL),
		WalletProvider:   strings.ToLower(getEnv("WALLET_PROVIDER", WalletProviderRPC)),
		WalletRPCURL:     os.Getenv("WALLET_RPC_URL"),
		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", defaultBackendURL), "/"),
		PriceOracleURL:   strings.TrimRight(getEnv("PRICE_ORACLE_URL", defaultPriceOracleURL), "/"),
		PriceOracleProxy: os.Getenv("PRICE_ORACLE_PROXY"),
		PriceAsset:       getEnv("PRICE_ASSET", defaultPriceAsset),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", defaultHTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ConfirmationTimeout, err = durationEnv("CONFIRMATION_TIMEOUT", defaultConfirmationTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReceiptPollInterval, err = durationEnv("RECEIPT_POLL_INTERVAL", defaultReceiptPoll); err != nil {
		return Config{}, err
	}

	gasLimit, err := intEnv("GAS_LIMIT", defaultGasLimit)
	if err != nil {
		return Config{}, err
	}
	if gasLimit <= 0 {
		return Config{}, fmt.Errorf("GAS_LIMIT must be positive")
	}
	cfg.GasLimit = uint64(gasLimit)

	fiatDecimals, err := intEnv("FIAT_DECIMALS", defaultFiatDecimals)
	if err != nil {
		return Config{}, err
	}
	if fiatDecimals < 0 || fiatDecimals > 18 {
		return Config{}, fmt.Errorf("FIAT_DECIMALS must be between 0 and 18")
	}
	cfg.FiatDecimals = int32(fiatDecimals)

	if cfg.SubmitRateLimit, err = intEnv("SUBMIT_RATE_LIMIT", defaultSubmitRateLimit); err != nil {
		return Config{}, err
	}

	switch cfg.WalletProvider {
	case WalletProviderRPC:
		if cfg.WalletRPCURL == "" {
			cfg.WalletRPCURL = cfg.ChainRPCURL
		}
	case WalletProviderKey:
		if cfg.WalletPrivateKey == "" {
			return Config{}, fmt.Errorf("WALLET_PRIVATE_KEY must be set when WALLET_PROVIDER=key")
		}
	case WalletProviderNone:
	default:
		return Config{}, fmt.Errorf("invalid WALLET_PROVIDER %q", cfg.WalletProvider)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY_SECONDS as whole seconds, else KEY as a Go duration.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
