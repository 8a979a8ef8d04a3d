// models/claim_reservation.go
package models

import "time"

// ReservationStatus tracks a claim slot from reservation to ledger settlement.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"   // slot taken, transfer not yet submitted
	ReservationSubmitted ReservationStatus = "submitted" // transfer submitted, ClaimRecord not yet written
	ReservationRecorded  ReservationStatus = "recorded"  // ClaimRecord written
	ReservationReleased  ReservationStatus = "released"  // transfer failed or reservation expired
)

// ClaimReservation holds a claim slot while the transfer is in flight. It counts against the
// global cap and blocks a second claim for the same identity or wallet until it is released.
// The ID doubles as the idempotency key of the disbursement.
type ClaimReservation struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Identity  string            `gorm:"column:fid;type:text;not null;index" json:"fid"`
	Wallet    string            `gorm:"column:wallet_address;type:varchar(42);not null;index" json:"wallet_address"`
	Amount    string            `gorm:"type:text;not null" json:"amount"`
	Token     string            `gorm:"column:token_address;type:varchar(42);not null" json:"token_address"`
	Status    ReservationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	TxHash    *string           `gorm:"type:varchar(66)" json:"tx_hash,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (ClaimReservation) TableName() string { return "claim_reservations" }

// Open reports whether the reservation still holds its slot.
func (r ClaimReservation) Open() bool {
	return r.Status == ReservationPending || r.Status == ReservationSubmitted
}
