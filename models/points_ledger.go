package models

import (
	"time"
)

// TransactionType indicates the direction of a ledger entry
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// PointsLedgerEntry is the append-only record of every balance change.
// Rows are immutable once written: no UpdatedAt, no soft delete.
type PointsLedgerEntry struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	WalletAddress   string          `gorm:"index;not null" json:"walletAddress"`
	Points          float64         `gorm:"not null" json:"points"` // delta, always positive; direction via TransactionType
	BalanceBefore   float64         `json:"balanceBefore"`
	BalanceAfter    float64         `json:"balanceAfter"`
	Source          string          `gorm:"index;not null" json:"source"` // slugified, e.g. "node-running"
	SubSource       string          `json:"subSource,omitempty"`
	TransactionType TransactionType `gorm:"not null;default:'credit'" json:"transactionType"`
	Timestamp       time.Time       `gorm:"index;not null" json:"timestamp"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}
