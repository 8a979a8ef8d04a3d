package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"token-claim-gate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	authorityFID = "42"
	tokenAddr    = "0x4ed4e862860bed51a9570b96d89af5e1b0efefed"
	castHash     = "0x8c1ba32ee75d4ac2fbb4c3aa12d3eb7b5ae5f8c1"
)

// walletsByIdentity gives every identity its own address.
type walletsByIdentity map[string][]string

func (m walletsByIdentity) AssociatedWallets(_ context.Context, identity string) ([]string, error) {
	if wallets, ok := m[identity]; ok {
		return wallets, nil
	}
	return []string{"0x" + strings.Repeat("0", 40-len(identity)) + identity}, nil
}

// settleFailingLedger loses every ClaimRecord write.
type settleFailingLedger struct {
	*MemoryLedger
}

func (l settleFailingLedger) Settle(context.Context, string, models.ClaimRecord) error {
	return fmt.Errorf("%w: connection reset", ErrPersistence)
}

type claimHarness struct {
	svc    *ClaimService
	ledger Ledger
	chain  *fakeChain
}

func newClaimHarness(t *testing.T, social stubGraph, book AddressBook, ledger Ledger, max int64) *claimHarness {
	t.Helper()
	chain := &fakeChain{}
	disburser, err := NewDisburser(chain, big.NewInt(1_000), nil, quietLogger())
	require.NoError(t, err)

	policy := &Policy{
		Ledger:       ledger,
		Cooldown:     Window{Mode: CalendarWindow, Days: 1},
		Cap:          Window{Mode: CalendarWindow, Days: 1},
		MaxPerWindow: max,
		Clock:        func() time.Time { return ledgerNow },
	}
	svc := NewClaimService(
		NewSocialVerifier(social, social, authorityFID, quietLogger()),
		NewWalletResolver(book, quietLogger()),
		ledger,
		policy,
		disburser,
		ClaimSettings{
			AuthorityID:    authorityFID,
			Token:          tokenAddr,
			Amount:         "1000",
			FollowTimeout:  time.Second,
			EndorseTimeout: time.Second,
			WalletTimeout:  time.Second,
		},
		quietLogger(),
	)
	return &claimHarness{svc: svc, ledger: ledger, chain: chain}
}

var eligible = stubGraph{following: true, endorsed: true}

func TestClaimFlowWalletThenClaimThenAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	h := newClaimHarness(t, eligible, stubBook{}, NewMemoryLedger(), 10)

	assert.Equal(t, NeedsWallet, h.svc.EvaluateCheck(ctx, "7", castHash).Kind)

	h.svc.Wallets.Book = stubBook{wallets: []string{walletA, walletB}}
	assert.Equal(t, AvailableToClaim, h.svc.EvaluateCheck(ctx, "7", castHash).Kind)

	d := h.svc.EvaluateClaim(ctx, "7", castHash)
	require.Equal(t, Disbursed, d.Kind)
	assert.Equal(t, walletA, d.Wallet)
	assert.Equal(t, tokenAddr, d.Token)
	assert.Equal(t, []string{walletA}, h.chain.transfers)

	latest, found, err := h.ledger.LatestFor(ctx, "7", walletA)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, d.TxHash, latest.TxHash)
	assert.Equal(t, "1000", latest.Amount)
	assert.Equal(t, tokenAddr, latest.TokenAddress)

	assert.Equal(t, alreadyClaimed(d.TxHash), h.svc.EvaluateCheck(ctx, "7", castHash))
	assert.Equal(t, alreadyClaimed(d.TxHash), h.svc.EvaluateClaim(ctx, "7", castHash))
	assert.Equal(t, 1, h.chain.count())

	count, err := h.ledger.CountInWindow(ctx, ledgerNow.Add(-time.Hour), time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAuthorityPreviewsWithoutTransfer(t *testing.T) {
	ctx := context.Background()
	h := newClaimHarness(t, stubGraph{}, stubBook{err: errBoom}, NewMemoryLedger(), 0)

	for _, identity := range []string{authorityFID, PreviewIdentity} {
		assert.Equal(t, AvailableToClaim, h.svc.EvaluateCheck(ctx, identity, castHash).Kind)
		assert.Equal(t, AvailableToClaim, h.svc.EvaluateClaim(ctx, identity, castHash).Kind)
	}
	assert.Zero(t, h.chain.count())
}

func TestSocialFailureSkipsWalletLookup(t *testing.T) {
	h := newClaimHarness(t, stubGraph{following: true}, stubBook{err: errBoom}, NewMemoryLedger(), 10)

	assert.Equal(t, NeedsFollowOrRecast, h.svc.EvaluateCheck(context.Background(), "7", castHash).Kind)
	assert.Equal(t, NeedsFollowOrRecast, h.svc.EvaluateClaim(context.Background(), "7", castHash).Kind)
}

func TestUpstreamErrorsBecomeInternalError(t *testing.T) {
	ctx := context.Background()

	h := newClaimHarness(t, stubGraph{err: errBoom}, stubBook{wallets: []string{walletA}}, NewMemoryLedger(), 10)
	assert.Equal(t, InternalError, h.svc.EvaluateCheck(ctx, "7", castHash).Kind)

	h = newClaimHarness(t, eligible, stubBook{err: ErrIdentityNotFound}, NewMemoryLedger(), 10)
	assert.Equal(t, InternalError, h.svc.EvaluateCheck(ctx, "7", castHash).Kind)
	assert.Equal(t, InternalError, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)
	assert.Zero(t, h.chain.count())
}

func TestTransferFailureReleasesSlot(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	h := newClaimHarness(t, eligible, stubBook{wallets: []string{walletA}}, ledger, 10)
	h.chain.err = errBoom

	assert.Equal(t, transferFailed(""), h.svc.EvaluateClaim(ctx, "7", castHash))

	released, err := ledger.ListReservations(ctx, models.ReservationReleased, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, released, 1)

	h.chain.err = nil
	assert.Equal(t, Disbursed, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)
}

func TestHungTransferIsAbandonedBeforeSlotExpires(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	h := newClaimHarness(t, eligible, stubBook{wallets: []string{walletA}}, ledger, 10)
	h.svc.Settings.TransferTimeout = 50 * time.Millisecond
	h.chain.stallNext = true
	h.chain.stalled = make(chan struct{})

	first := make(chan Decision, 1)
	go func() { first <- h.svc.EvaluateClaim(ctx, "7", castHash) }()
	<-h.chain.stalled

	// While the transfer hangs the slot stays held.
	assert.Equal(t, AlreadyClaimed, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)

	select {
	case d := <-first:
		assert.Equal(t, TransferFailed, d.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("hung transfer was not abandoned")
	}
	assert.Zero(t, h.chain.count())

	// Nothing is left for the reconciler to release behind a live transfer.
	pending, err := ledger.ListReservations(ctx, models.ReservationPending, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, Disbursed, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)
	assert.Equal(t, 1, h.chain.count())
}

func TestCapBoundary(t *testing.T) {
	ctx := context.Background()
	h := newClaimHarness(t, eligible, walletsByIdentity{}, NewMemoryLedger(), 2)

	assert.Equal(t, AvailableToClaim, h.svc.EvaluateEntry(ctx).Kind)
	assert.Equal(t, Disbursed, h.svc.EvaluateClaim(ctx, "1001", castHash).Kind)
	assert.Equal(t, Disbursed, h.svc.EvaluateClaim(ctx, "1002", castHash).Kind)
	assert.Equal(t, CapacityReached, h.svc.EvaluateClaim(ctx, "1003", castHash).Kind)
	assert.Equal(t, CapacityReached, h.svc.EvaluateCheck(ctx, "1003", castHash).Kind)
	assert.Equal(t, CapacityReached, h.svc.EvaluateEntry(ctx).Kind)
	assert.Equal(t, 2, h.chain.count())
}

func TestConcurrentClaimsRespectCap(t *testing.T) {
	ctx := context.Background()
	h := newClaimHarness(t, eligible, walletsByIdentity{}, NewMemoryLedger(), 3)

	var wg sync.WaitGroup
	results := make([]Decision, 12)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.svc.EvaluateClaim(ctx, fmt.Sprint(2000+i), castHash)
		}(i)
	}
	wg.Wait()

	kinds := map[DecisionKind]int{}
	for _, d := range results {
		kinds[d.Kind]++
	}
	assert.Equal(t, 3, kinds[Disbursed])
	assert.Equal(t, 9, kinds[CapacityReached])
	assert.Equal(t, 3, h.chain.count())
}

func TestConcurrentClaimsForOneIdentityDisburseOnce(t *testing.T) {
	ctx := context.Background()
	h := newClaimHarness(t, eligible, stubBook{wallets: []string{walletA}}, NewMemoryLedger(), 100)

	var wg sync.WaitGroup
	results := make([]Decision, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.svc.EvaluateClaim(ctx, "7", castHash)
		}(i)
	}
	wg.Wait()

	disbursedCount := 0
	for _, d := range results {
		switch d.Kind {
		case Disbursed:
			disbursedCount++
		case AlreadyClaimed:
		default:
			t.Errorf("unexpected decision %s", d.Kind)
		}
	}
	assert.Equal(t, 1, disbursedCount)
	assert.Equal(t, 1, h.chain.count())
}

func TestPersistenceFailureAfterTransferIsInternalError(t *testing.T) {
	ctx := context.Background()
	ledger := settleFailingLedger{NewMemoryLedger()}
	h := newClaimHarness(t, eligible, stubBook{wallets: []string{walletA}}, ledger, 10)

	assert.Equal(t, InternalError, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)
	assert.Equal(t, 1, h.chain.count())

	// The submitted reservation keeps the slot, so a retry cannot pay twice.
	submitted, err := ledger.ListReservations(ctx, models.ReservationSubmitted, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, AlreadyClaimed, h.svc.EvaluateClaim(ctx, "7", castHash).Kind)
	assert.Equal(t, 1, h.chain.count())
}
