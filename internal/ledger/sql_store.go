package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Wikid82/proxybot/internal/models"
)

// SQLStore keeps ledger entries in a relational table, one row per proxy.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the ledger table and returns a store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&models.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("%w: auto migrate: %v", ErrIO, err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns the user's entries in creation order.
func (s *SQLStore) Get(ctx context.Context, userID string) (Record, error) {
	var rows []models.LedgerEntry
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("position asc").Find(&rows).Error; err != nil {
		return Record{}, fmt.Errorf("%w: query entries: %v", ErrIO, err)
	}

	rec := Record{UserID: userID}
	for _, row := range rows {
		rec.Entries = append(rec.Entries, Entry{
			ID:         row.ProxyID,
			Domain:     row.Domain,
			TargetIP:   row.TargetIP,
			TargetPort: row.TargetPort,
			CreatedAt:  row.CreatedAt,
		})
	}
	return rec, nil
}

// Put replaces all of the user's rows in one transaction.
func (s *SQLStore) Put(ctx context.Context, rec Record) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", rec.UserID).Delete(&models.LedgerEntry{}).Error; err != nil {
			return err
		}
		if len(rec.Entries) == 0 {
			return nil
		}
		rows := make([]models.LedgerEntry, 0, len(rec.Entries))
		for i, e := range rec.Entries {
			rows = append(rows, models.LedgerEntry{
				UserID:     rec.UserID,
				Position:   i,
				ProxyID:    e.ID,
				Domain:     e.Domain,
				TargetIP:   e.TargetIP,
				TargetPort: e.TargetPort,
				CreatedAt:  e.CreatedAt,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("%w: replace entries: %v", ErrIO, err)
	}
	return nil
}

// Delete removes every row of the user.
func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.LedgerEntry{}).Error; err != nil {
		return fmt.Errorf("%w: delete entries: %v", ErrIO, err)
	}
	return nil
}

// Users lists user ids with at least one row, sorted.
func (s *SQLStore) Users(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Distinct("user_id").Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrIO, err)
	}
	return ids, nil
}
