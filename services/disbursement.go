package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

// Transferrer moves the distributed token out of custody.
type Transferrer interface {
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
}

// Disburser sends the fixed allocation to a wallet.
type Disburser struct {
	Chain  Transferrer
	Amount *big.Int
	// MinRecipientBalance enables the balance guard when positive: recipients already holding at
	// least this much native balance are skipped.
	MinRecipientBalance *big.Int
	Logger              *slog.Logger
}

func NewDisburser(chain Transferrer, amount, minRecipientBalance *big.Int, logger *slog.Logger) (*Disburser, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("allocation amount must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Disburser{Chain: chain, Amount: amount, MinRecipientBalance: minRecipientBalance, Logger: logger}, nil
}

// Disburse submits one transfer of Amount to wallet and returns the transaction hash. Every
// failure, including a skip by the balance guard, wraps ErrTransfer.
func (d *Disburser) Disburse(ctx context.Context, wallet string) (string, error) {
	if d.MinRecipientBalance != nil && d.MinRecipientBalance.Sign() > 0 {
		balance, err := d.Chain.BalanceOf(ctx, wallet)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrTransfer, err)
		}
		if balance.Cmp(d.MinRecipientBalance) >= 0 {
			d.Logger.Info("skipping funded recipient",
				"event", "transfer_skipped",
				"wallet", wallet,
				"balance", balance.String(),
				"min_balance", d.MinRecipientBalance.String(),
			)
			return "", fmt.Errorf("%w: %w: %s", ErrTransfer, ErrRecipientFunded, wallet)
		}
	}

	txHash, err := d.Chain.Transfer(ctx, wallet, d.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: to %s: %w", ErrTransfer, wallet, err)
	}
	if len(txHash) <= 2 {
		return "", fmt.Errorf("%w: empty tx hash for %s", ErrTransfer, wallet)
	}
	d.Logger.Info("transfer submitted",
		"event", "transfer_submitted",
		"wallet", wallet,
		"amount", d.Amount.String(),
		"tx_hash", txHash,
	)
	return txHash, nil
}
