package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"token-claim-gate/models"
	"token-claim-gate/services"
)

// ReservationReconciler repairs reservations the claim path could not finish: submitted transfers
// whose ClaimRecord was never written, and pending slots whose request died before submitting.
type ReservationReconciler struct {
	Ledger services.Ledger
	// Grace is how long a submitted reservation may wait for the claim path to settle it.
	Grace time.Duration
	// TTL is how long a pending reservation may hold its slot.
	TTL    time.Duration
	Logger *slog.Logger
	Clock  func() time.Time
}

func NewReservationReconciler(ledger services.Ledger, grace, ttl time.Duration, logger *slog.Logger) *ReservationReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationReconciler{
		Ledger: ledger,
		Grace:  grace,
		TTL:    ttl,
		Logger: logger,
		Clock:  func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileOnce settles stale submitted reservations and releases expired pending ones.
func (r *ReservationReconciler) ReconcileOnce(ctx context.Context) (settled, released int, err error) {
	now := r.Clock()

	submitted, err := r.Ledger.ListReservations(ctx, models.ReservationSubmitted, now.Add(-r.Grace))
	if err != nil {
		return 0, 0, err
	}
	for _, res := range submitted {
		if res.TxHash == nil || *res.TxHash == "" {
			continue
		}
		rec := models.ClaimRecord{
			Timestamp:    res.UpdatedAt,
			Identity:     res.Identity,
			Wallet:       res.Wallet,
			Amount:       res.Amount,
			TxHash:       *res.TxHash,
			TokenAddress: res.Token,
		}
		if err := r.Ledger.Settle(ctx, res.ID, rec); err != nil {
			r.Logger.Error("❌ failed to settle submitted reservation",
				"event", "reconcile_settle_failed",
				"reservation_id", res.ID,
				"tx_hash", rec.TxHash,
				"error", err,
			)
			continue
		}
		r.Logger.Warn("settled claim left unrecorded by the claim path",
			"event", "reconcile_settled",
			"reservation_id", res.ID,
			"identity", res.Identity,
			"tx_hash", rec.TxHash,
		)
		settled++
	}

	pending, err := r.Ledger.ListReservations(ctx, models.ReservationPending, now.Add(-r.TTL))
	if err != nil {
		return settled, 0, err
	}
	for _, res := range pending {
		if err := r.Ledger.Release(ctx, res.ID); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			r.Logger.Error("❌ failed to release expired reservation", "event", "reconcile_release_failed", "reservation_id", res.ID, "error", err)
			continue
		}
		r.Logger.Info("released expired reservation", "event", "reconcile_released", "reservation_id", res.ID, "identity", res.Identity)
		released++
	}
	return settled, released, nil
}

// PollReservations runs ReconcileOnce every interval until ctx is cancelled.
func PollReservations(ctx context.Context, r *ReservationReconciler, interval time.Duration) {
	r.Logger.Info("Starting reservation reconciliation...", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("Reservation reconciliation stopped.")
			return
		case <-ticker.C:
			settled, released, err := r.ReconcileOnce(ctx)
			if err != nil {
				r.Logger.Error("❌ Error reconciling reservations", "event", "reconcile_failed", "error", err)
				continue
			}
			if settled+released > 0 {
				r.Logger.Info("✅ Reconciled reservations", "settled", settled, "released", released)
			}
		}
	}
}
