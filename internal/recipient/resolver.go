// Package recipient resolves the single, session-wide transfer destination.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/congo-pay/walletconnector/internal/chain"
	"github.com/congo-pay/walletconnector/internal/metrics"
)

// ErrRecipientUnavailable means the recipient address could not be obtained.
var ErrRecipientUnavailable = errors.New("recipient unavailable")

// Source supplies the recipient address.
type Source interface {
	AdminAddress(ctx context.Context) (string, error)
}

// Resolver fetches the recipient once and serves it from cache afterwards.
type Resolver struct {
	source Source
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	address string
}

// NewResolver builds a resolver over source.
func NewResolver(source Source, logger *slog.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// Resolve returns the cached address, fetching it on first use. Concurrent
// first calls share one request.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if addr, ok := r.Cached(); ok {
		return addr, nil
	}
	v, err, _ := r.group.Do("recipient", func() (any, error) {
		if addr, ok := r.Cached(); ok {
			return addr, nil
		}
		return r.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh re-fetches the address. On failure the previous value is kept.
// Concurrent refreshes share one request but never join a pending Resolve.
func (r *Resolver) Refresh(ctx context.Context) (string, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		return r.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cached returns the address without any I/O.
func (r *Resolver) Cached() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address, r.address != ""
}

func (r *Resolver) fetch(ctx context.Context) (string, error) {
	var addr string
	err := metrics.ObserveCall(metrics.CallAdminAddress, func() error {
		var err error
		addr, err = r.source.AdminAddress(ctx)
		return err
	})
	if err != nil {
		r.logger.Warn("recipient lookup failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrRecipientUnavailable, err)
	}
	if _, err := chain.ParseAddress(addr); err != nil {
		r.logger.Warn("recipient lookup returned malformed address", "address", addr)
		return "", fmt.Errorf("%w: %v", ErrRecipientUnavailable, err)
	}

	r.mu.Lock()
	r.address = addr
	r.mu.Unlock()

	r.logger.Info("recipient resolved", "address", addr)
	return addr, nil
}
