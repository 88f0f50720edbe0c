// Package chain wraps the Ethereum JSON-RPC read and broadcast calls used by
// the wallet session and the transfer flow.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrInvalidAddress is returned when an account string is not a hex address.
var ErrInvalidAddress = errors.New("invalid address")

// ErrReceiptPending indicates the transaction has no receipt yet.
var ErrReceiptPending = errors.New("receipt pending")

// Reader is the chain query surface needed by the session manager and the
// transfer orchestrator.
type Reader interface {
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Client is a Reader backed by go-ethereum's ethclient. It also exposes the
// broadcast calls used by locally signing wallet providers.
type Client struct {
	rpc *ethclient.Client
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("chain rpc url is required")
	}
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &Client{rpc: rpc}, nil
}

// NewClient wraps an existing ethclient.
func NewClient(rpc *ethclient.Client) *Client {
	return &Client{rpc: rpc}
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ParseAddress validates and decodes a hex account identifier.
func ParseAddress(account string) (ecommon.Address, error) {
	if !ecommon.IsHexAddress(account) {
		return ecommon.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, account)
	}
	return ecommon.HexToAddress(account), nil
}

// BalanceAt returns the latest balance of account in base units.
func (c *Client) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	addr, err := ParseAddress(account)
	if err != nil {
		return nil, err
	}
	balance, err := c.rpc.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

// SuggestGasPrice returns the node's current gas price in base units.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

// ChainID returns the chain identifier used for transaction signing.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

// PendingNonceAt returns the next nonce for account including pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account ecommon.Address) (uint64, error) {
	nonce, err := c.rpc.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// SendTransaction broadcasts a signed transaction. A nil error means the node
// accepted it into its pool, not that it was mined.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}

// TransactionReceipt returns the receipt of a mined transaction or
// ErrReceiptPending when the node does not know one yet.
func (c *Client) TransactionReceipt(ctx context.Context, hash ecommon.Hash) (*types.Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptPending
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}
