package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "rentme-reservations/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

const claimLease = 30 * time.Second

// OutboxModel is the GORM model for the transactional outbox.
type OutboxModel struct {
	ID            string          `gorm:"primaryKey;size:64"`
	Name          string          `gorm:"not null;size:128"`
	Payload       []byte          `gorm:"not null"`
	OccurredAt    time.Time       `gorm:"not null"`
	Aggregate     string          `gorm:"size:64"`
	Headers       json.RawMessage `gorm:"type:jsonb"`
	State         string          `gorm:"not null;size:16;index:idx_outbox_due,priority:1"`
	Attempts      int             `gorm:"not null"`
	NextAttemptAt time.Time       `gorm:"not null;index:idx_outbox_due,priority:2"`
	ClaimedBy     string          `gorm:"size:64"`
	ClaimedAt     *time.Time
	SentAt        *time.Time
	LastError     string    `gorm:"size:1000"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false"`
}

func (OutboxModel) TableName() string {
	return "app_outbox"
}

func toOutboxModel(record appoutbox.EventRecord, now time.Time) (OutboxModel, error) {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return OutboxModel{}, fmt.Errorf("failed to marshal headers: %w", err)
	}
	return OutboxModel{
		ID:            record.ID,
		Name:          record.Name,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt,
		Aggregate:     record.Aggregate,
		Headers:       headers,
		State:         stateNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

func (m OutboxModel) toClaimed() (*appoutbox.Claimed, error) {
	var headers map[string]string
	if len(m.Headers) > 0 {
		if err := json.Unmarshal(m.Headers, &headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	return &appoutbox.Claimed{
		EventRecord: appoutbox.EventRecord{
			ID:         m.ID,
			Name:       m.Name,
			Payload:    m.Payload,
			OccurredAt: m.OccurredAt.UTC(),
			Aggregate:  m.Aggregate,
			Headers:    headers,
		},
		Attempts: m.Attempts,
	}, nil
}

// OutboxStore is the relay side of the outbox table. Claim locks one due row
// with SKIP LOCKED so parallel relays never pick the same record.
type OutboxStore struct {
	db *gorm.DB
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string, now time.Time) (*appoutbox.Claimed, error) {
	var claimed *appoutbox.Claimed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model OutboxModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state = ? OR (state = ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at <= ?)",
				stateNew, stateFailed, now, stateClaimed, now.Add(-claimLease)).
			Order("created_at ASC, id ASC").
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&OutboxModel{}).Where("id = ?", model.ID).
			Updates(map[string]any{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}).Error; err != nil {
			return err
		}
		claimed, err = model.toClaimed()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox record: %w", err)
	}
	return claimed, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", id).
		Updates(map[string]any{"state": stateSent, "sent_at": at}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, reason string) error {
	return s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":           stateFailed,
			"next_attempt_at": next,
			"last_error":      reason,
			"attempts":        gorm.Expr("attempts + 1"),
		}).Error
}

var _ appoutbox.RelayStore = (*OutboxStore)(nil)
