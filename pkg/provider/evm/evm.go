// Package evm exposes read-only Ethereum JSON-RPC queries as a capability
// provider.
package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

const (
	// Name is the provider's registry name.
	Name = "evm"

	// EnvPrivateKey is the environment variable holding the hex-encoded
	// private key. Only get-address and the implicit own-address default
	// of get-balance need it.
	EnvPrivateKey = "EVM_PRIVATE_KEY"
)

var weiPerEther = new(big.Float).SetFloat64(1e18)

// rpcClient is the slice of ethclient.Client the provider uses. Tests
// swap it for a stub.
type rpcClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Provider adapts an EVM JSON-RPC endpoint for read-only queries.
type Provider struct {
	env     provider.Env
	network string
	rpc     rpcClient
	ops     *provider.OperationSet
}

// New constructs the provider from its config block. Dialing an HTTP
// endpoint is lazy, so a bad URL surfaces on first use rather than here.
func New(cfg map[string]any, env provider.Env) (provider.Provider, error) {
	rpcURL, err := provider.RequiredString(cfg, "rpc_url")
	if err != nil {
		return nil, err
	}
	network, err := provider.OptionalString(cfg, "network", "mainnet")
	if err != nil {
		return nil, err
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "failed to dial rpc endpoint", err)
	}

	p := &Provider{env: env, network: network, rpc: client}
	p.ops, err = provider.NewOperationSet(
		provider.Operation{
			Name:        "get-address",
			Description: "Derive the wallet address from the configured private key",
			Handler:     p.getAddress,
		},
		provider.Operation{
			Name:        "get-balance",
			Description: "Get the native token balance of an address in ether",
			Params: []provider.Param{
				{Name: "address", Required: false, Kind: provider.KindString, Description: "Address to query, defaults to the configured wallet"},
			},
			Handler: p.getBalance,
		},
		provider.Operation{
			Name:        "get-block-number",
			Description: "Get the latest block number",
			Handler:     p.getBlockNumber,
		},
		provider.Operation{
			Name:        "get-gas-price",
			Description: "Get the suggested gas price in wei",
			Handler:     p.getGasPrice,
		},
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Name() string      { return Name }
func (p *Provider) LLMProvider() bool { return false }

func (p *Provider) Configure(ctx context.Context) (bool, error) {
	return provider.ConfigureSecret(ctx, p.env, Name, EnvPrivateKey, "EVM private key")
}

// IsConfigured is true as soon as an RPC endpoint is bound; the private
// key is only required by key-dependent operations. Verbose mode probes
// the endpoint.
func (p *Provider) IsConfigured(ctx context.Context, verbose bool) bool {
	if p.rpc == nil {
		return false
	}
	if verbose {
		if _, err := p.rpc.BlockNumber(ctx); err != nil {
			return false
		}
	}
	return true
}

func (p *Provider) Operations() []provider.Operation {
	return p.ops.List()
}

func (p *Provider) Perform(ctx context.Context, operation string, params map[string]any) (any, error) {
	return p.ops.Perform(ctx, operation, params)
}

func (p *Provider) walletAddress(ctx context.Context) (common.Address, error) {
	raw, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvPrivateKey)
	if !ok {
		return common.Address{}, errors.Newf(errors.CodeNotConfigured, "%s is not set", EnvPrivateKey).
			WithRecoverable(true)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return common.Address{}, errors.New(errors.CodeConfiguration, "invalid private key", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (p *Provider) getAddress(ctx context.Context, _ map[string]any) (any, error) {
	addr, err := p.walletAddress(ctx)
	if err != nil {
		return nil, err
	}
	return addr.Hex(), nil
}

func (p *Provider) getBalance(ctx context.Context, params map[string]any) (any, error) {
	var account common.Address
	if raw, ok := params["address"].(string); ok && raw != "" {
		if !common.IsHexAddress(raw) {
			return nil, errors.Newf(errors.CodeInvalidParameters, "invalid address %q", raw).
				WithViolations("invalid type for address, expected hex address")
		}
		account = common.HexToAddress(raw)
	} else {
		addr, err := p.walletAddress(ctx)
		if err != nil {
			return nil, err
		}
		account = addr
	}

	balance, err := p.rpc.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "balance query failed", err).WithRecoverable(true)
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), weiPerEther).Float64()
	return map[string]any{
		"address": account.Hex(),
		"balance": ether,
		"network": p.network,
	}, nil
}

func (p *Provider) getBlockNumber(ctx context.Context, _ map[string]any) (any, error) {
	n, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "block number query failed", err).WithRecoverable(true)
	}
	return n, nil
}

func (p *Provider) getGasPrice(ctx context.Context, _ map[string]any) (any, error) {
	price, err := p.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "gas price query failed", err).WithRecoverable(true)
	}
	return price.String(), nil
}

var _ provider.Provider = (*Provider)(nil)
