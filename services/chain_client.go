package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// ChainBackend is the subset of ethclient.Client the custody wallet needs.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// EVMChain sends ERC-20 transfers from the custody key. The token and fee ceiling are fixed at
// construction.
type EVMChain struct {
	backend   ChainBackend
	key       *ecdsa.PrivateKey
	from      common.Address
	token     common.Address
	maxFee    *big.Int
	chainID   *big.Int
	erc20     abi.ABI
	sendMutex sync.Mutex
}

func NewEVMChain(ctx context.Context, backend ChainBackend, privateKeyHex, token string, maxFeePerGas *big.Int) (*EVMChain, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse custody key: %w", err)
	}
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address %q", token)
	}
	if maxFeePerGas == nil || maxFeePerGas.Sign() <= 0 {
		return nil, errors.New("max fee per gas must be positive")
	}
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	return &EVMChain{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		token:   common.HexToAddress(token),
		maxFee:  new(big.Int).Set(maxFeePerGas),
		chainID: chainID,
		erc20:   parsed,
	}, nil
}

// Custody returns the sending address.
func (c *EVMChain) Custody() string { return strings.ToLower(c.from.Hex()) }

// Transfer signs and submits transfer(to, amount) on the token contract and returns the tx hash
// without waiting for inclusion.
func (c *EVMChain) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient %q", to)
	}
	data, err := c.erc20.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("encode transfer: %w", err)
	}

	// Nonce lookup and submission must not interleave between concurrent claims.
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas tip: %w", err)
	}
	if tip.Cmp(c.maxFee) > 0 {
		tip = new(big.Int).Set(c.maxFee)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      c.from,
		To:        &c.token,
		GasFeeCap: c.maxFee,
		GasTipCap: tip,
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: c.maxFee,
		Gas:       gas,
		To:        &c.token,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// BalanceOf returns the native balance of address at the latest block.
func (c *EVMChain) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	balance, err := c.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return balance, nil
}

// ParseUnits converts a human decimal amount into integer base units, e.g. ("1.5", 18).
// Amounts with more fractional digits than decimals, and negative amounts, are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

var _ Transferrer = (*EVMChain)(nil)
