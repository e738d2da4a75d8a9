// Package store persists guess records through gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"raffle-guess/internal/models"

	"gorm.io/gorm"
)

// Store is the guess repository used by the store API and the reconciler.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Record inserts rec unless a row with the same (user_address, timestamp)
// already exists, in which case rec is overwritten with the stored row.
// The returned flag reports whether a new row was created.
func (s *Store) Record(ctx context.Context, rec *models.GuessRecord) (bool, error) {
	existing, found, err := s.find(ctx, rec.UserAddress, rec.Timestamp)
	if err != nil {
		return false, err
	}
	if found {
		*rec = existing
		return false, nil
	}

	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with an identical write
			existing, found, ferr := s.find(ctx, rec.UserAddress, rec.Timestamp)
			if ferr == nil && found {
				*rec = existing
				return false, nil
			}
		}
		return false, fmt.Errorf("insert guess: %w", err)
	}
	return true, nil
}

func (s *Store) find(ctx context.Context, userAddress string, ts int64) (models.GuessRecord, bool, error) {
	var existing models.GuessRecord
	res := s.db.WithContext(ctx).
		Where(&models.GuessRecord{UserAddress: userAddress, Timestamp: ts}).
		Limit(1).
		Find(&existing)
	if res.Error != nil {
		return models.GuessRecord{}, false, fmt.Errorf("lookup guess: %w", res.Error)
	}
	return existing, res.RowsAffected > 0, nil
}

// ListByFID returns the guesses for fid, newest first. No rows is an empty slice.
func (s *Store) ListByFID(ctx context.Context, fid int64) ([]models.GuessRecord, error) {
	out := []models.GuessRecord{}
	if err := s.db.WithContext(ctx).
		Where("fid = ?", fid).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	return out, nil
}

// Exists reports whether the entry (userAddress, ts) has been recorded.
func (s *Store) Exists(ctx context.Context, userAddress string, ts int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.GuessRecord{}).
		Where(&models.GuessRecord{UserAddress: userAddress, Timestamp: ts}).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("count guesses: %w", err)
	}
	return n > 0, nil
}
