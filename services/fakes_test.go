package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubGraph answers follow and endorsement checks from fixed values, optionally after a delay.
type stubGraph struct {
	following bool
	endorsed  bool
	err       error
	delay     time.Duration
}

func (g stubGraph) wait(ctx context.Context) error {
	if g.delay == 0 {
		return nil
	}
	select {
	case <-time.After(g.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g stubGraph) IsFollowing(ctx context.Context, _, _ string) (bool, error) {
	if err := g.wait(ctx); err != nil {
		return false, err
	}
	return g.following, g.err
}

func (g stubGraph) HasEndorsed(ctx context.Context, _, _, _ string) (bool, error) {
	if err := g.wait(ctx); err != nil {
		return false, err
	}
	return g.endorsed, g.err
}

type stubBook struct {
	wallets []string
	err     error
	delay   time.Duration
}

func (b stubBook) AssociatedWallets(ctx context.Context, _ string) ([]string, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.wallets, b.err
}

// fakeChain records transfers and hands out sequential hashes.
type fakeChain struct {
	mu        sync.Mutex
	transfers []string
	balance   *big.Int
	err       error
	hash      string
	// stallNext makes the next transfer hang until its context ends.
	stallNext bool
	stalled   chan struct{}
}

func (c *fakeChain) Transfer(ctx context.Context, to string, _ *big.Int) (string, error) {
	c.mu.Lock()
	stall := c.stallNext
	c.stallNext = false
	c.mu.Unlock()
	if stall {
		if c.stalled != nil {
			close(c.stalled)
		}
		<-ctx.Done()
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.transfers = append(c.transfers, to)
	if c.hash != "" {
		return c.hash, nil
	}
	return fmt.Sprintf("0x%064x", len(c.transfers)), nil
}

func (c *fakeChain) BalanceOf(context.Context, string) (*big.Int, error) {
	if c.balance == nil {
		return big.NewInt(0), nil
	}
	return c.balance, nil
}

func (c *fakeChain) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transfers)
}

var errBoom = errors.New("boom")
