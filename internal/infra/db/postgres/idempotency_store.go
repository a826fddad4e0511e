package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentme-reservations/internal/app/middleware"
)

type IdempotencyModel struct {
	Key        string `gorm:"primaryKey;size:256"`
	Command    string `gorm:"not null;size:64"`
	Payload    []byte
	OccurredAt time.Time  `gorm:"not null"`
	ExpiresAt  *time.Time `gorm:"index"`
}

func (IdempotencyModel) TableName() string {
	return "app_idempotency"
}

type IdempotencyStore struct {
	db *gorm.DB
}

func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var model IdempotencyModel
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{
		Key:        model.Key,
		Command:    model.Command,
		Payload:    model.Payload,
		OccurredAt: model.OccurredAt.UTC(),
		ExpiresAt:  timeValue(model.ExpiresAt),
	}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	model := IdempotencyModel{
		Key:        rec.Key,
		Command:    rec.Command,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		ExpiresAt:  timePtr(rec.ExpiresAt),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

func (s *IdempotencyStore) Purge(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at < ?", before).Delete(&IdempotencyModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
