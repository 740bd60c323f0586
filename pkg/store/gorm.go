package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore writes records through gorm.
type GormStore struct {
	db *gorm.DB
}

// Open picks the postgres driver for postgres DSNs and sqlite for anything
// else (a file path or ":memory:"), then migrates both tables.
func Open(dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	if isPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the tables.
func New(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&LoanRecord{}, &TransactionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "host=")
}

func (s *GormStore) InsertLoan(ctx context.Context, rec *LoanRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("%w: insert loan %s: %v", ErrPersistence, rec.TxHash, err)
	}
	return nil
}

func (s *GormStore) InsertTransaction(ctx context.Context, rec *TransactionRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("%w: insert transaction %s: %v", ErrPersistence, rec.TxHash, err)
	}
	return nil
}

// LoansByBorrower lists a borrower's loan rows, newest first.
func (s *GormStore) LoansByBorrower(ctx context.Context, borrower string) ([]LoanRecord, error) {
	var out []LoanRecord
	err := s.db.WithContext(ctx).
		Where("borrower_address = ?", borrower).
		Order("id desc").
		Find(&out).Error
	return out, err
}

// TransactionsByHash lists transaction rows for a chain transaction.
func (s *GormStore) TransactionsByHash(ctx context.Context, txHash string) ([]TransactionRecord, error) {
	var out []TransactionRecord
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).Find(&out).Error
	return out, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
