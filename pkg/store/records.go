// Package store persists loan intents and their transaction records.
package store

import (
	"context"
	"errors"
	"time"
)

// Lifecycle values written at creation time. Later transitions belong to
// whatever reconciles the chain with these tables.
const (
	StatusPending = "pending"

	TxTypeLoanRequest = "loan_request"
)

// ErrPersistence wraps every failed write.
var ErrPersistence = errors.New("store: write failed")

// LoanRecord is a row in `loans`.
type LoanRecord struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	BorrowerAddress string    `gorm:"column:borrower_address;index;not null" json:"borrower_address"`
	Amount          string    `gorm:"column:amount;type:numeric;not null" json:"amount"`
	Purpose         string    `gorm:"column:purpose" json:"purpose"`
	Sector          string    `gorm:"column:sector" json:"sector"`
	RiskScore       int       `gorm:"column:risk_score" json:"risk_score"`
	IPFSHash        string    `gorm:"column:ipfs_hash" json:"ipfs_hash"`
	TxHash          string    `gorm:"column:tx_hash;index;not null" json:"tx_hash"`
	Status          string    `gorm:"column:status;not null" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (LoanRecord) TableName() string { return "loans" }

// TransactionRecord is a row in `transactions`.
type TransactionRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAddress string    `gorm:"column:user_address;index;not null" json:"user_address"`
	Type        string    `gorm:"column:type;not null" json:"type"`
	Amount      string    `gorm:"column:amount;type:numeric;not null" json:"amount"`
	TxHash      string    `gorm:"column:tx_hash;index;not null" json:"tx_hash"`
	Status      string    `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TransactionRecord) TableName() string { return "transactions" }

// Store accepts the two inserts of a loan submission. They are independent:
// the first may succeed while the second fails.
type Store interface {
	InsertLoan(ctx context.Context, rec *LoanRecord) error
	InsertTransaction(ctx context.Context, rec *TransactionRecord) error
}
