package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// GormStore implements Store using GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-based store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// handleError converts driver-specific errors to repository errors
func handleError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	// PostgreSQL and SQLite unique constraint violations
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
