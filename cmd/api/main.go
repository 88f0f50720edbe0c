package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletconnector/internal/backend"
	"github.com/congo-pay/walletconnector/internal/chain"
	"github.com/congo-pay/walletconnector/internal/config"
	"github.com/congo-pay/walletconnector/internal/infra"
	"github.com/congo-pay/walletconnector/internal/logging"
	"github.com/congo-pay/walletconnector/internal/metrics"
	"github.com/congo-pay/walletconnector/internal/oracle"
	"github.com/congo-pay/walletconnector/internal/routes"
	"github.com/congo-pay/walletconnector/internal/server"
	"github.com/congo-pay/walletconnector/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	metrics.Register(logger)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	node, err := chain.Dial(ctx, cfg.ChainRPCURL)
	if err != nil {
		logger.Error("connect chain node", "error", err)
		os.Exit(1)
	}
	defer node.Close()

	provider, closeProvider, err := buildProvider(ctx, cfg, node, logger)
	if err != nil {
		logger.Error("build wallet provider", "error", err)
		os.Exit(1)
	}
	defer closeProvider()

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Chain:    node,
		Provider: provider,
		Backend:  backend.New(cfg.BackendURL, cfg.HTTPTimeout),
		Oracle:   oracle.New(cfg.PriceOracleURL, cfg.HTTPTimeout, cfg.PriceOracleProxy),
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// buildProvider returns a nil Provider when no wallet is configured.
func buildProvider(ctx context.Context, cfg config.Config, node *chain.Client, logger *slog.Logger) (wallet.Provider, func(), error) {
	opts := wallet.ProviderOptions{
		PollInterval:   cfg.ReceiptPollInterval,
		ReceiptTimeout: cfg.ConfirmationTimeout,
		Logger:         logger,
	}
	switch cfg.WalletProvider {
	case config.WalletProviderRPC:
		p, err := wallet.DialRPCProvider(ctx, cfg.WalletRPCURL, opts)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.WalletProviderKey:
		p, err := wallet.NewKeyProvider(cfg.WalletPrivateKey, node, opts)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
