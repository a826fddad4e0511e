package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "rentme-reservations/internal/app/outbox"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

type propertyRepo struct{ u *Unit }

func (r propertyRepo) ByID(ctx context.Context, id domainproperty.PropertyID) (*domainproperty.Property, error) {
	var model PropertyModel
	if err := r.u.db(ctx).Where("id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domainproperty.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find property: %w", err)
	}
	return toDomainProperty(&model), nil
}

func (r propertyRepo) Save(ctx context.Context, p *domainproperty.Property) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	model := toPropertyModel(p)
	model.Version = p.Version + 1
	if err := r.u.db(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}
	p.Version = model.Version
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	var model BookingModel
	if err := r.u.db(ctx).Where("id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking %s", domainbooking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return toDomainBooking(&model)
}

// Save inserts version 1 for new bookings and otherwise updates the row only
// if its version still matches.
func (r bookingRepo) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	model, err := toBookingModel(b)
	if err != nil {
		return err
	}
	model.Version = b.Version + 1
	if b.Version == 0 {
		if err := r.u.db(ctx).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domainbooking.ErrConcurrentUpdate
			}
			return fmt.Errorf("failed to save booking: %w", err)
		}
		b.Version = model.Version
		return nil
	}
	res := r.u.db(ctx).Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, b.Version).
		Select("*").
		Updates(model)
	if res.Error != nil {
		return fmt.Errorf("failed to update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = model.Version
	return nil
}

func (r bookingRepo) ListOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	q := r.u.db(ctx).
		Where("property_id = ? AND check_in < ? AND check_out > ?", string(propertyID), dr.CheckOut, dr.CheckIn)
	return r.find(withStatuses(q, statuses).Order("check_in ASC, id ASC"))
}

func (r bookingRepo) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(r.u.db(ctx).Where("renter_id = ?", renterID).Order("created_at DESC, id DESC"))
}

func (r bookingRepo) ListByOwner(ctx context.Context, ownerID string, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	q := r.u.db(ctx).Where("owner_id = ?", ownerID)
	return r.find(withStatuses(q, statuses).Order("created_at DESC, id DESC"))
}

func (r bookingRepo) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	q := r.u.db(ctx).
		Where("status = ? AND check_out <= ?", string(domainbooking.StatusConfirmed), cutoff.UTC()).
		Order("check_out ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.find(q)
}

func (r bookingRepo) find(q *gorm.DB) ([]*domainbooking.Booking, error) {
	var models []BookingModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	out := make([]*domainbooking.Booking, 0, len(models))
	for i := range models {
		b, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func withStatuses(q *gorm.DB, statuses []domainbooking.Status) *gorm.DB {
	if len(statuses) == 0 {
		return q
	}
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return q.Where("status IN ?", values)
}

type windowRepo struct{ u *Unit }

func (r windowRepo) ByID(ctx context.Context, id domainavailability.WindowID) (*domainavailability.Window, error) {
	var model WindowModel
	if err := r.u.db(ctx).Where("id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainavailability.ErrWindowNotFound
		}
		return nil, fmt.Errorf("failed to find window: %w", err)
	}
	return toDomainWindow(&model), nil
}

func (r windowRepo) ListByProperty(ctx context.Context, propertyID domainproperty.PropertyID) ([]*domainavailability.Window, error) {
	return r.find(r.u.db(ctx).Where("property_id = ?", string(propertyID)))
}

func (r windowRepo) ListOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange) ([]*domainavailability.Window, error) {
	return r.find(r.u.db(ctx).Where("property_id = ? AND check_in < ? AND check_out > ?", string(propertyID), dr.CheckOut, dr.CheckIn))
}

func (r windowRepo) Save(ctx context.Context, w *domainavailability.Window) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	model := toWindowModel(w)
	if err := r.u.db(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save window: %w", err)
	}
	return nil
}

func (r windowRepo) Delete(ctx context.Context, id domainavailability.WindowID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	res := r.u.db(ctx).Where("id = ?", string(id)).Delete(&WindowModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete window: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domainavailability.ErrWindowNotFound
	}
	return nil
}

func (r windowRepo) find(q *gorm.DB) ([]*domainavailability.Window, error) {
	var models []WindowModel
	if err := q.Order("check_in ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	out := make([]*domainavailability.Window, 0, len(models))
	for i := range models {
		out = append(out, toDomainWindow(&models[i]))
	}
	return out, nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	model, err := toOutboxModel(record, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := o.u.db(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to add outbox record: %w", err)
	}
	return nil
}
