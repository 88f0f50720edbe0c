package wallet

import (
	"context"
	"errors"
	"fmt"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const rpcMethodNotFound = -32601

// RPCProvider talks to a JSON-RPC wallet endpoint that manages its own keys,
// such as an injected browser wallet bridge or a dev node with unlocked accounts.
type RPCProvider struct {
	rpc  *rpc.Client
	opts ProviderOptions
}

// DialRPCProvider connects to a wallet JSON-RPC endpoint.
func DialRPCProvider(ctx context.Context, url string, opts ProviderOptions) (*RPCProvider, error) {
	if url == "" {
		return nil, fmt.Errorf("wallet rpc url is required")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet RPC: %w", err)
	}
	return NewRPCProvider(client, opts), nil
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(client *rpc.Client, opts ProviderOptions) *RPCProvider {
	return &RPCProvider{rpc: client, opts: opts.withDefaults()}
}

// Close releases the RPC connection.
func (p *RPCProvider) Close() {
	p.rpc.Close()
}

// RequestAccounts asks the wallet to authorize its accounts. Endpoints that
// do not implement eth_requestAccounts are asked for eth_accounts instead.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := p.rpc.CallContext(ctx, &accounts, "eth_requestAccounts")
	if isMethodNotFound(err) {
		err = p.rpc.CallContext(ctx, &accounts, "eth_accounts")
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

type sendTxArgs struct {
	From     ecommon.Address `json:"from"`
	To       ecommon.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
}

// SendTransaction asks the wallet to sign and broadcast tx. The returned
// handle has already emitted EventAccepted.
func (p *RPCProvider) SendTransaction(ctx context.Context, tx TxDescriptor) (*TxHandle, error) {
	args, err := toSendArgs(tx)
	if err != nil {
		return nil, err
	}

	var hash ecommon.Hash
	if err := p.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, err
	}

	handle := NewTxHandle()
	handle.Emit(Event{Kind: EventAccepted, Hash: hash})
	go watchReceipt(hash, p.receipt, p.opts.PollInterval, p.opts.ReceiptTimeout, handle, p.opts.Logger)
	return handle, nil
}

func (p *RPCProvider) receipt(ctx context.Context, hash ecommon.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := p.rpc.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return receipt, nil
}

func toSendArgs(tx TxDescriptor) (sendTxArgs, error) {
	if !ecommon.IsHexAddress(tx.From) {
		return sendTxArgs{}, fmt.Errorf("invalid from address %q", tx.From)
	}
	if !ecommon.IsHexAddress(tx.To) {
		return sendTxArgs{}, fmt.Errorf("invalid to address %q", tx.To)
	}
	if tx.Value == nil || tx.GasPrice == nil {
		return sendTxArgs{}, fmt.Errorf("value and gas price are required")
	}
	return sendTxArgs{
		From:     ecommon.HexToAddress(tx.From),
		To:       ecommon.HexToAddress(tx.To),
		Value:    (*hexutil.Big)(tx.Value),
		Gas:      hexutil.Uint64(tx.Gas),
		GasPrice: (*hexutil.Big)(tx.GasPrice),
	}, nil
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rpcMethodNotFound
}
