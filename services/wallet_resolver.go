package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AddressBook lists the payout addresses associated with an identity, in upstream order.
type AddressBook interface {
	AssociatedWallets(ctx context.Context, identity string) ([]string, error)
}

type WalletResolver struct {
	Book   AddressBook
	Logger *slog.Logger
}

func NewWalletResolver(book AddressBook, logger *slog.Logger) *WalletResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletResolver{Book: book, Logger: logger}
}

// ResolveWallets returns the identity's valid addresses, lowercased, in upstream order. A timeout
// yields an empty list. Upstream errors are returned as errors, never as "no wallet".
func (r *WalletResolver) ResolveWallets(ctx context.Context, identity string, timeout time.Duration) ([]string, error) {
	candidates, timedOut, err := FirstOf(ctx, timeout, []string(nil), func(ctx context.Context) ([]string, error) {
		return r.Book.AssociatedWallets(ctx, identity)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve wallets for %s: %w", identity, err)
	}
	if timedOut {
		r.Logger.Warn("wallet lookup timed out, treating as no wallet",
			"event", "wallet_lookup_timeout",
			"identity", identity,
			"timeout", timeout.String(),
		)
		return nil, nil
	}

	wallets := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		addr, ok := NormalizeAddress(candidate)
		if !ok {
			r.Logger.Debug("discarding malformed wallet", "identity", identity, "candidate", candidate)
			continue
		}
		wallets = append(wallets, addr)
	}
	r.Logger.Debug("wallets resolved", "identity", identity, "wallets", strings.Join(wallets, ", "))
	return wallets, nil
}

// NormalizeAddress validates a 0x-prefixed 20-byte hex address and returns its lowercase form.
func NormalizeAddress(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "0x") && !strings.HasPrefix(candidate, "0X") {
		return "", false
	}
	if !common.IsHexAddress(candidate) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(candidate).Hex()), true
}
