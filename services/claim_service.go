package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"token-claim-gate/models"

	"github.com/google/uuid"
)

const DefaultTransferTimeout = 2 * time.Minute

// ClaimSettings are the per-deployment values of the claim pipeline.
type ClaimSettings struct {
	AuthorityID    string
	Token          string
	Amount         string // base units, as recorded in the ledger
	FollowTimeout  time.Duration
	EndorseTimeout time.Duration
	WalletTimeout  time.Duration

	// TransferTimeout bounds one disbursement. It must stay below the reservation TTL so a
	// pending slot is never released while its transfer can still complete.
	TransferTimeout time.Duration
}

// ClaimService runs the entry, check and claim steps of the claim flow.
type ClaimService struct {
	Verifier  *SocialVerifier
	Wallets   *WalletResolver
	Ledger    Ledger
	Policy    *Policy
	Disburser *Disburser
	Settings  ClaimSettings
	Logger    *slog.Logger
	newID     func() string
}

func NewClaimService(verifier *SocialVerifier, wallets *WalletResolver, ledger Ledger, policy *Policy, disburser *Disburser, settings ClaimSettings, logger *slog.Logger) *ClaimService {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.TransferTimeout <= 0 {
		settings.TransferTimeout = DefaultTransferTimeout
	}
	return &ClaimService{
		Verifier:  verifier,
		Wallets:   wallets,
		Ledger:    ledger,
		Policy:    policy,
		Disburser: disburser,
		Settings:  settings,
		Logger:    logger,
		newID:     uuid.NewString,
	}
}

func (s *ClaimService) isAuthority(identity string) bool {
	return identity == s.Settings.AuthorityID || identity == PreviewIdentity
}

// EvaluateEntry decides the landing card: CapacityReached when the cap window is full.
func (s *ClaimService) EvaluateEntry(ctx context.Context) Decision {
	reached, err := s.Policy.CapReached(ctx)
	if err != nil {
		s.Logger.Error("entry cap lookup failed", "event", "entry_failed", "error", err)
		return decide(InternalError)
	}
	if reached {
		return decide(CapacityReached)
	}
	return decide(AvailableToClaim)
}

// gather collects the eligibility inputs in rule order and stops as soon as a rule decides, so a
// user who has not recast never costs a wallet lookup.
func (s *ClaimService) gather(ctx context.Context, identity, contentID string) (EligibilityInput, error) {
	in := EligibilityInput{Now: s.Policy.now(), Cooldown: s.Policy.Cooldown}
	if s.isAuthority(identity) {
		in.IsAuthority = true
		return in, nil
	}

	reached, err := s.Policy.CapReached(ctx)
	if err != nil {
		return in, err
	}
	if in.CapReached = reached; reached {
		return in, nil
	}

	in.Follow, in.Endorse, err = s.Verifier.Verify(ctx, identity, contentID, s.Settings.FollowTimeout, s.Settings.EndorseTimeout)
	if err != nil {
		return in, err
	}
	if !in.Follow.Satisfied || !in.Endorse.Satisfied {
		return in, nil
	}

	in.Wallets, err = s.Wallets.ResolveWallets(ctx, identity, s.Settings.WalletTimeout)
	if err != nil || len(in.Wallets) == 0 {
		return in, err
	}

	latest, found, err := s.Ledger.LatestFor(ctx, identity, in.Wallets[0])
	if err != nil {
		return in, err
	}
	if found {
		in.LatestClaim = &latest
	}
	return in, nil
}

// EvaluateCheck reports whether identity may claim, without side effects.
func (s *ClaimService) EvaluateCheck(ctx context.Context, identity, contentID string) Decision {
	in, err := s.gather(ctx, identity, contentID)
	if err != nil {
		s.Logger.Error("eligibility check failed", "event", "check_failed", "identity", identity, "error", err)
		return decide(InternalError)
	}
	d := ResolveEligibility(in)
	s.Logger.Debug("eligibility resolved", "event", "check_resolved", "identity", identity, "decision", d.Kind.String())
	return d
}

// EvaluateClaim re-runs the checks, reserves a slot and disburses the allocation to the primary
// wallet. The authority only previews the claim; nothing is transferred.
func (s *ClaimService) EvaluateClaim(ctx context.Context, identity, contentID string) Decision {
	in, err := s.gather(ctx, identity, contentID)
	if err != nil {
		s.Logger.Error("claim check failed", "event", "claim_failed", "identity", identity, "error", err)
		return decide(InternalError)
	}
	d := ResolveEligibility(in)
	if in.IsAuthority || d.Kind != AvailableToClaim {
		return d
	}

	wallet := in.Wallets[0]
	req := s.Policy.reserveRequest(in.Now)
	req.Reservation = models.ClaimReservation{
		ID:       s.newID(),
		Identity: identity,
		Wallet:   wallet,
		Amount:   s.Settings.Amount,
		Token:    s.Settings.Token,
	}
	res, err := s.Ledger.Reserve(ctx, req)
	switch {
	case errors.Is(err, ErrCapReached):
		return decide(CapacityReached)
	case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrClaimInFlight):
		s.Logger.Info("claim rejected at reservation", "event", "claim_duplicate", "identity", identity, "wallet", wallet, "reason", err.Error())
		return alreadyClaimed(s.latestHash(ctx, identity, wallet))
	case err != nil:
		s.Logger.Error("claim reservation failed", "event", "reserve_failed", "identity", identity, "error", err)
		return decide(InternalError)
	}

	// Once the slot is held the transfer and its bookkeeping run to completion even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)

	sendCtx, cancel := context.WithTimeout(ctx, s.Settings.TransferTimeout)
	txHash, err := s.Disburser.Disburse(sendCtx, wallet)
	cancel()
	if err != nil {
		if relErr := s.Ledger.Release(ctx, res.ID); relErr != nil {
			s.Logger.Error("release reservation failed", "event", "release_failed", "reservation_id", res.ID, "error", relErr)
		}
		s.Logger.Warn("transfer failed", "event", "transfer_failed", "identity", identity, "wallet", wallet, "error", err)
		return transferFailed(s.latestHash(ctx, identity, wallet))
	}

	if err := s.Ledger.MarkSubmitted(ctx, res.ID, txHash); err != nil {
		s.Logger.Error("mark reservation submitted failed",
			"event", "mark_submitted_failed",
			"reservation_id", res.ID,
			"tx_hash", txHash,
			"error", err,
		)
	}

	rec := models.ClaimRecord{
		Timestamp:    s.Policy.now(),
		Identity:     identity,
		Wallet:       wallet,
		Amount:       s.Settings.Amount,
		TxHash:       txHash,
		TokenAddress: s.Settings.Token,
	}
	if err := s.Ledger.Settle(ctx, res.ID, rec); err != nil {
		s.Logger.Error("transfer submitted but claim not recorded: double disbursement possible until reconciled",
			"event", "claim_unrecorded",
			"reservation_id", res.ID,
			"identity", identity,
			"wallet", wallet,
			"tx_hash", txHash,
			"error", err,
		)
		return decide(InternalError)
	}

	s.Logger.Info("claim disbursed", "event", "claim_disbursed", "identity", identity, "wallet", wallet, "tx_hash", txHash)
	return disbursed(txHash, wallet, s.Settings.Token)
}

func (s *ClaimService) latestHash(ctx context.Context, identity, wallet string) string {
	latest, found, err := s.Ledger.LatestFor(ctx, identity, wallet)
	if err != nil {
		s.Logger.Warn("latest claim lookup failed", "identity", identity, "error", err)
		return ""
	}
	if !found {
		return ""
	}
	return latest.TxHash
}
