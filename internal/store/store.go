// Package store persists users, their settings and the delivery ledger with GORM.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyAnswered is returned when feedback was recorded for a delivery
	// between the caller's read and its write.
	ErrAlreadyAnswered = errors.New("feedback already recorded")
)

// Store is the GORM-backed implementation of every persistence interface
// the digest, scheduler and feedback packages consume.
type Store struct {
	db *gorm.DB
}

// New wraps an open database connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
