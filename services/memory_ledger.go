package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"token-claim-gate/models"
)

// MemoryLedger is a process-local Ledger for LEDGER_DRIVER=memory and tests. A single mutex
// makes Reserve atomic.
type MemoryLedger struct {
	mu           sync.Mutex
	records      []models.ClaimRecord
	reservations map[string]models.ClaimReservation
	nextID       uint
	now          func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		reservations: make(map[string]models.ClaimReservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryLedger) Insert(_ context.Context, rec models.ClaimRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec)
}

func (m *MemoryLedger) insertLocked(rec models.ClaimRecord) error {
	for _, existing := range m.records {
		if existing.TxHash == rec.TxHash {
			return fmt.Errorf("%w: duplicate tx hash %s", ErrPersistence, rec.TxHash)
		}
	}
	m.nextID++
	rec.ID = m.nextID
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Wallet = strings.ToLower(rec.Wallet)
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryLedger) LatestFor(_ context.Context, identity, wallet string) (models.ClaimRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet = strings.ToLower(wallet)
	var latest models.ClaimRecord
	found := false
	for _, rec := range m.records {
		if rec.Identity != identity && rec.Wallet != wallet {
			continue
		}
		if !found || rec.Timestamp.After(latest.Timestamp) ||
			(rec.Timestamp.Equal(latest.Timestamp) && rec.ID > latest.ID) {
			latest = rec
			found = true
		}
	}
	return latest, found, nil
}

func within(ts, start, end time.Time) bool {
	return !ts.Before(start) && (end.IsZero() || ts.Before(end))
}

func (m *MemoryLedger) CountInWindow(_ context.Context, start, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(start, end), nil
}

func (m *MemoryLedger) countLocked(start, end time.Time) int64 {
	var n int64
	for _, rec := range m.records {
		if within(rec.Timestamp, start, end) {
			n++
		}
	}
	return n
}

func (m *MemoryLedger) ListInWindow(_ context.Context, start, end time.Time) ([]models.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ClaimRecord
	for _, rec := range m.records {
		if within(rec.Timestamp, start, end) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryLedger) Reserve(_ context.Context, req ReserveRequest) (models.ClaimReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := req.Reservation
	res.Wallet = strings.ToLower(res.Wallet)

	for _, rec := range m.records {
		if (rec.Identity == res.Identity || rec.Wallet == res.Wallet) && within(rec.Timestamp, req.CooldownStart, req.CooldownEnd) {
			return models.ClaimReservation{}, ErrAlreadyClaimed
		}
	}
	var open int64
	for _, o := range m.reservations {
		if !o.Open() {
			continue
		}
		if o.Identity == res.Identity || o.Wallet == res.Wallet {
			return models.ClaimReservation{}, ErrClaimInFlight
		}
		open++
	}
	if m.countLocked(req.CapStart, req.CapEnd)+open >= req.MaxPerWindow {
		return models.ClaimReservation{}, ErrCapReached
	}
	if _, exists := m.reservations[res.ID]; exists {
		return models.ClaimReservation{}, ErrClaimInFlight
	}

	ts := m.now()
	res.Status = models.ReservationPending
	res.TxHash = nil
	if res.CreatedAt.IsZero() {
		res.CreatedAt = ts
	}
	res.UpdatedAt = res.CreatedAt
	m.reservations[res.ID] = res
	return res, nil
}

func (m *MemoryLedger) transitionLocked(reservationID string, to models.ReservationStatus, txHash string) error {
	res, ok := m.reservations[reservationID]
	if !ok || !res.Open() {
		return fmt.Errorf("open reservation %s: %w", reservationID, ErrNotFound)
	}
	res.Status = to
	if txHash != "" {
		res.TxHash = &txHash
	}
	res.UpdatedAt = m.now()
	m.reservations[reservationID] = res
	return nil
}

func (m *MemoryLedger) MarkSubmitted(_ context.Context, reservationID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(reservationID, models.ReservationSubmitted, txHash)
}

func (m *MemoryLedger) Release(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(reservationID, models.ReservationReleased, "")
}

func (m *MemoryLedger) Settle(_ context.Context, reservationID string, rec models.ClaimRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists := false
	for _, existing := range m.records {
		if existing.TxHash == rec.TxHash {
			exists = true
			break
		}
	}
	if !exists {
		if err := m.insertLocked(rec); err != nil {
			return err
		}
	}
	if res, ok := m.reservations[reservationID]; !ok || !res.Open() {
		return nil
	}
	return m.transitionLocked(reservationID, models.ReservationRecorded, rec.TxHash)
}

func (m *MemoryLedger) ListReservations(_ context.Context, status models.ReservationStatus, updatedBefore time.Time) ([]models.ClaimReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ClaimReservation
	for _, res := range m.reservations {
		if res.Status == status && res.UpdatedAt.Before(updatedBefore) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Ledger = (*MemoryLedger)(nil)
