package models

import "time"

// ClaimRecord = one successful disbursement. Rows are only ever inserted.
// Table name: allocations
type ClaimRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	Wallet       string    `gorm:"column:wallet_address;type:varchar(42);not null;index" json:"wallet_address"`
	Identity     string    `gorm:"column:fid;type:text;not null;index" json:"fid"`
	Amount       string    `gorm:"column:amount_redeemed;type:text;not null" json:"amount_redeemed"` // token base units
	TxHash       string    `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	TokenAddress string    `gorm:"type:varchar(42);not null" json:"token_address"`
}

func (ClaimRecord) TableName() string { return "allocations" }
