package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"token-claim-gate/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the append-only claim store plus the reservation table that serializes claims.
type Ledger interface {
	Insert(ctx context.Context, rec models.ClaimRecord) error
	// LatestFor returns the newest record whose identity OR wallet matches.
	LatestFor(ctx context.Context, identity, wallet string) (models.ClaimRecord, bool, error)
	// CountInWindow counts records with start <= timestamp < end; a zero end is open-ended.
	CountInWindow(ctx context.Context, start, end time.Time) (int64, error)
	ListInWindow(ctx context.Context, start, end time.Time) ([]models.ClaimRecord, error)

	// Reserve atomically checks the cooldown for identity/wallet, open reservations and the cap,
	// then stores the reservation. It fails with ErrAlreadyClaimed, ErrClaimInFlight or ErrCapReached.
	Reserve(ctx context.Context, req ReserveRequest) (models.ClaimReservation, error)
	MarkSubmitted(ctx context.Context, reservationID, txHash string) error
	Release(ctx context.Context, reservationID string) error
	// Settle inserts the ClaimRecord and marks the reservation recorded. Settling a reservation
	// whose tx hash is already in the ledger only marks it recorded.
	Settle(ctx context.Context, reservationID string, rec models.ClaimRecord) error
	ListReservations(ctx context.Context, status models.ReservationStatus, updatedBefore time.Time) ([]models.ClaimReservation, error)
}

type ReserveRequest struct {
	Reservation   models.ClaimReservation
	CooldownStart time.Time
	CooldownEnd   time.Time
	CapStart      time.Time
	CapEnd        time.Time
	MaxPerWindow  int64
}

var openStatuses = []models.ReservationStatus{models.ReservationPending, models.ReservationSubmitted}

// reserveLockKey serializes reservations across service instances sharing one Postgres.
const reserveLockKey int64 = 0x636c61696d // "claim"

// GormLedger stores claims in the allocations table.
type GormLedger struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewGormLedger(db *gorm.DB, logger *slog.Logger) *GormLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormLedger{db: db, logger: logger}
}

// Migrate creates the ledger tables if they are missing.
func (l *GormLedger) Migrate() error {
	return l.db.AutoMigrate(&models.ClaimRecord{}, &models.ClaimReservation{})
}

func (l *GormLedger) Insert(ctx context.Context, rec models.ClaimRecord) error {
	if err := insertClaim(l.db.WithContext(ctx), rec); err != nil {
		l.logger.Error("ledger insert failed",
			"event", "ledger_insert_failed",
			"identity", rec.Identity,
			"wallet", rec.Wallet,
			"tx_hash", rec.TxHash,
			"error", err,
		)
		return err
	}
	return nil
}

func insertClaim(db *gorm.DB, rec models.ClaimRecord) error {
	rec.ID = 0
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Wallet = strings.ToLower(rec.Wallet)
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: insert claim %s: %w", ErrPersistence, rec.TxHash, err)
	}
	return nil
}

func (l *GormLedger) LatestFor(ctx context.Context, identity, wallet string) (models.ClaimRecord, bool, error) {
	var rec models.ClaimRecord
	err := l.db.WithContext(ctx).
		Where("(fid = ? OR wallet_address = ?)", identity, strings.ToLower(wallet)).
		Order("timestamp DESC").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ClaimRecord{}, false, nil
		}
		return models.ClaimRecord{}, false, fmt.Errorf("latest claim for %s: %w", identity, err)
	}
	return rec, true, nil
}

func inWindow(db *gorm.DB, start, end time.Time) *gorm.DB {
	db = db.Where("timestamp >= ?", start.UTC())
	if !end.IsZero() {
		db = db.Where("timestamp < ?", end.UTC())
	}
	return db
}

func (l *GormLedger) CountInWindow(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	if err := inWindow(l.db.WithContext(ctx).Model(&models.ClaimRecord{}), start, end).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return count, nil
}

func (l *GormLedger) ListInWindow(ctx context.Context, start, end time.Time) ([]models.ClaimRecord, error) {
	var records []models.ClaimRecord
	if err := inWindow(l.db.WithContext(ctx), start, end).Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return records, nil
}

func (l *GormLedger) Reserve(ctx context.Context, req ReserveRequest) (models.ClaimReservation, error) {
	res := req.Reservation
	res.Wallet = strings.ToLower(res.Wallet)
	res.Status = models.ReservationPending
	res.TxHash = nil

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", reserveLockKey).Error; err != nil {
				return fmt.Errorf("acquire reserve lock: %w", err)
			}
		}

		var claimed int64
		if err := inWindow(tx.Model(&models.ClaimRecord{}), req.CooldownStart, req.CooldownEnd).
			Where("(fid = ? OR wallet_address = ?)", res.Identity, res.Wallet).
			Count(&claimed).Error; err != nil {
			return err
		}
		if claimed > 0 {
			return ErrAlreadyClaimed
		}

		var open []models.ClaimReservation
		if err := tx.Clauses(lockingFor(tx)...).
			Where("status IN ?", openStatuses).
			Find(&open).Error; err != nil {
			return err
		}
		for _, o := range open {
			if o.Identity == res.Identity || o.Wallet == res.Wallet {
				return ErrClaimInFlight
			}
		}

		var issued int64
		if err := inWindow(tx.Model(&models.ClaimRecord{}), req.CapStart, req.CapEnd).Count(&issued).Error; err != nil {
			return err
		}
		if issued+int64(len(open)) >= req.MaxPerWindow {
			return ErrCapReached
		}

		if err := tx.Create(&res).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrClaimInFlight
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) || errors.Is(err, ErrClaimInFlight) || errors.Is(err, ErrCapReached) {
			return models.ClaimReservation{}, err
		}
		return models.ClaimReservation{}, fmt.Errorf("%w: reserve claim for %s: %w", ErrPersistence, res.Identity, err)
	}
	return res, nil
}

func lockingFor(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "postgres" {
		return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
	}
	return nil
}

func (l *GormLedger) transition(db *gorm.DB, reservationID string, to models.ReservationStatus, updates map[string]any) error {
	updates["status"] = to
	updates["updated_at"] = time.Now().UTC()
	result := db.Model(&models.ClaimReservation{}).
		Where("id = ? AND status IN ?", reservationID, openStatuses).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%w: mark reservation %s %s: %w", ErrPersistence, reservationID, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("open reservation %s: %w", reservationID, ErrNotFound)
	}
	return nil
}

func (l *GormLedger) MarkSubmitted(ctx context.Context, reservationID, txHash string) error {
	return l.transition(l.db.WithContext(ctx), reservationID, models.ReservationSubmitted, map[string]any{"tx_hash": txHash})
}

func (l *GormLedger) Release(ctx context.Context, reservationID string) error {
	return l.transition(l.db.WithContext(ctx), reservationID, models.ReservationReleased, map[string]any{})
}

func (l *GormLedger) Settle(ctx context.Context, reservationID string, rec models.ClaimRecord) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.ClaimRecord{}).Where("tx_hash = ?", rec.TxHash).Count(&existing).Error; err != nil {
			return fmt.Errorf("%w: settle %s: %w", ErrPersistence, reservationID, err)
		}
		if existing == 0 {
			if err := insertClaim(tx, rec); err != nil {
				return err
			}
		}
		err := l.transition(tx, reservationID, models.ReservationRecorded, map[string]any{"tx_hash": rec.TxHash})
		if errors.Is(err, ErrNotFound) {
			// The reservation expired while the transfer was in flight; the claim still stands.
			l.logger.Warn("settled claim without an open reservation",
				"event", "ledger_settle_orphan",
				"reservation_id", reservationID,
				"tx_hash", rec.TxHash,
			)
			return nil
		}
		return err
	})
}

func (l *GormLedger) ListReservations(ctx context.Context, status models.ReservationStatus, updatedBefore time.Time) ([]models.ClaimReservation, error) {
	var out []models.ClaimReservation
	err := l.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, updatedBefore.UTC()).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list %s reservations: %w", status, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Ledger = (*GormLedger)(nil)
