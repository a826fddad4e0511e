package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentme-reservations/internal/app/policies"
)

type InboxModel struct {
	EventID    string    `gorm:"primaryKey;size:128"`
	Consumer   string    `gorm:"primaryKey;size:64"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (InboxModel) TableName() string {
	return "app_inbox"
}

type Inbox struct {
	db       *gorm.DB
	consumer string
}

func NewInbox(db *gorm.DB, consumer string) *Inbox {
	return &Inbox{db: db, consumer: consumer}
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	res := i.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&InboxModel{EventID: eventID, Consumer: i.consumer, ReceivedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

func (i *Inbox) Forget(ctx context.Context, eventID string) error {
	return i.db.WithContext(ctx).Where("event_id = ? AND consumer = ?", eventID, i.consumer).Delete(&InboxModel{}).Error
}

var _ policies.Inbox = (*Inbox)(nil)
