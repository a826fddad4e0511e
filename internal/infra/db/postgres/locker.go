package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentme-reservations/internal/app/policies"
)

// LockModel is a lease row in property_locks.
type LockModel struct {
	LockKey    string    `gorm:"primaryKey;size:128"`
	Holder     string    `gorm:"not null;size:128"`
	AcquiredAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
}

func (LockModel) TableName() string {
	return "property_locks"
}

// Locker takes a lease on a row. An expired lease may be taken over; a live
// one makes Lock fail with ErrLockUnavailable.
type Locker struct {
	db     *gorm.DB
	ttl    time.Duration
	owner  string
	logger *slog.Logger
}

func NewLocker(db *gorm.DB, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{db: db, ttl: ttl, owner: uuid.NewString(), logger: logger}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	now := time.Now().UTC()
	lease := LockModel{LockKey: key, Holder: l.owner + ":" + uuid.NewString(), AcquiredAt: now, ExpiresAt: now.Add(l.ttl)}
	res := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"holder", "acquired_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "property_locks.expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(&lease)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, policies.ErrLockUnavailable
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := l.db.WithContext(ctx).Where("lock_key = ? AND holder = ?", key, lease.Holder).Delete(&LockModel{}).Error
		if err != nil && l.logger != nil {
			l.logger.Warn("property lock release failed", "key", key, "error", err)
		}
	}, nil
}

var _ policies.PropertyLocker = (*Locker)(nil)
