package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/congo-pay/walletconnector/internal/chain"
)

// Broadcaster is the chain access a locally signing provider needs.
type Broadcaster interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ecommon.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash ecommon.Hash) (*types.Receipt, error)
}

// KeyProvider signs with a single locally held secp256k1 key.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address ecommon.Address
	chain   Broadcaster
	opts    ProviderOptions
}

// NewKeyProvider parses a hex encoded private key (0x prefix optional).
func NewKeyProvider(hexKey string, chain Broadcaster, opts ProviderOptions) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chain:   chain,
		opts:    opts.withDefaults(),
	}, nil
}

// RequestAccounts returns the key's address.
func (p *KeyProvider) RequestAccounts(context.Context) ([]string, error) {
	return []string{p.address.Hex()}, nil
}

// SendTransaction signs a legacy transfer and broadcasts it.
func (p *KeyProvider) SendTransaction(ctx context.Context, tx TxDescriptor) (*TxHandle, error) {
	args, err := toSendArgs(tx)
	if err != nil {
		return nil, err
	}
	if args.From != p.address {
		return nil, fmt.Errorf("account %s is not managed by this wallet", tx.From)
	}

	nonce, err := p.chain.PendingNonceAt(ctx, p.address)
	if err != nil {
		return nil, err
	}
	chainID, err := p.chain.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	to := args.To
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: tx.GasPrice,
		Gas:      tx.Gas,
		To:       &to,
		Value:    tx.Value,
	})
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := p.chain.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	handle := NewTxHandle()
	handle.Emit(Event{Kind: EventAccepted, Hash: signed.Hash()})
	go watchReceipt(signed.Hash(), p.receipt, p.opts.PollInterval, p.opts.ReceiptTimeout, handle, p.opts.Logger)
	return handle, nil
}

func (p *KeyProvider) receipt(ctx context.Context, hash ecommon.Hash) (*types.Receipt, error) {
	receipt, err := p.chain.TransactionReceipt(ctx, hash)
	if errors.Is(err, chain.ErrReceiptPending) {
		return nil, nil
	}
	return receipt, err
}
