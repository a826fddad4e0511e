package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	appoutbox "rentme-reservations/internal/app/outbox"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/events"
)

// Repositories read through the unit's staged writes to committed state and
// always hand out copies.

type propertyRepo struct{ u *unit }

func (r propertyRepo) ByID(_ context.Context, id domainproperty.PropertyID) (*domainproperty.Property, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if p, ok := r.u.properties[id]; ok {
		return cloneProperty(p), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	if p, ok := r.u.store.properties[id]; ok {
		return cloneProperty(p), nil
	}
	return nil, fmt.Errorf("%w: %s", domainproperty.ErrNotFound, id)
}

func (r propertyRepo) Save(_ context.Context, p *domainproperty.Property) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.writable(); err != nil {
		return err
	}
	p.Version++
	r.u.properties[p.ID] = cloneProperty(p)
	return nil
}

type bookingRepo struct{ u *unit }

func (r bookingRepo) ByID(_ context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if staged, ok := r.u.bookings[id]; ok {
		return cloneBooking(staged.booking), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	if b, ok := r.u.store.bookings[id]; ok {
		return cloneBooking(b), nil
	}
	return nil, fmt.Errorf("%w: booking %s", domainbooking.ErrNotFound, id)
}

func (r bookingRepo) Save(_ context.Context, b *domainbooking.Booking) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.writable(); err != nil {
		return err
	}
	staged, ok := r.u.bookings[b.ID]
	if !ok {
		r.u.store.mu.RLock()
		if stored, exists := r.u.store.bookings[b.ID]; exists {
			staged.base = stored.Version
		}
		r.u.store.mu.RUnlock()
	}
	visible := staged.base
	if ok {
		visible = staged.booking.Version
	}
	if visible != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	staged.booking = cloneBooking(b)
	r.u.bookings[b.ID] = staged
	return nil
}

func (r bookingRepo) ListOverlapping(_ context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.PropertyID == propertyID && b.Range.Overlaps(dr) && hasStatus(b.Status, statuses)
	}, byCheckIn), nil
}

func (r bookingRepo) ListByRenter(_ context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.RenterID == renterID
	}, byCreatedDesc), nil
}

func (r bookingRepo) ListByOwner(_ context.Context, ownerID string, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.OwnerID == ownerID && hasStatus(b.Status, statuses)
	}, byCreatedDesc), nil
}

func (r bookingRepo) ListConfirmedEndedBefore(_ context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.filter(func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusConfirmed && b.Range.Ended(cutoff)
	}, byCheckOut)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r bookingRepo) filter(keep func(*domainbooking.Booking) bool, less func(a, b *domainbooking.Booking) bool) []*domainbooking.Booking {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()

	var out []*domainbooking.Booking
	for id, b := range r.u.store.bookings {
		if staged, ok := r.u.bookings[id]; ok {
			b = staged.booking
		}
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	for id, staged := range r.u.bookings {
		if _, committed := r.u.store.bookings[id]; committed {
			continue
		}
		if keep(staged.booking) {
			out = append(out, cloneBooking(staged.booking))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func hasStatus(status domainbooking.Status, statuses []domainbooking.Status) bool {
	return len(statuses) == 0 || slices.Contains(statuses, status)
}

func byCheckIn(a, b *domainbooking.Booking) bool {
	if a.Range.CheckIn.Equal(b.Range.CheckIn) {
		return a.ID < b.ID
	}
	return a.Range.CheckIn.Before(b.Range.CheckIn)
}

func byCheckOut(a, b *domainbooking.Booking) bool {
	if a.Range.CheckOut.Equal(b.Range.CheckOut) {
		return a.ID < b.ID
	}
	return a.Range.CheckOut.Before(b.Range.CheckOut)
}

func byCreatedDesc(a, b *domainbooking.Booking) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

type windowRepo struct{ u *unit }

func (r windowRepo) ByID(_ context.Context, id domainavailability.WindowID) (*domainavailability.Window, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, gone := r.u.deleted[id]; gone {
		return nil, domainavailability.ErrWindowNotFound
	}
	if w, ok := r.u.windows[id]; ok {
		return cloneWindow(w), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	if w, ok := r.u.store.windows[id]; ok {
		return cloneWindow(w), nil
	}
	return nil, domainavailability.ErrWindowNotFound
}

func (r windowRepo) ListByProperty(_ context.Context, propertyID domainproperty.PropertyID) ([]*domainavailability.Window, error) {
	return r.filter(func(w *domainavailability.Window) bool { return w.PropertyID == propertyID }), nil
}

func (r windowRepo) ListOverlapping(_ context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange) ([]*domainavailability.Window, error) {
	return r.filter(func(w *domainavailability.Window) bool {
		return w.PropertyID == propertyID && w.Range.Overlaps(dr)
	}), nil
}

func (r windowRepo) Save(_ context.Context, w *domainavailability.Window) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.writable(); err != nil {
		return err
	}
	delete(r.u.deleted, w.ID)
	r.u.windows[w.ID] = cloneWindow(w)
	return nil
}

func (r windowRepo) Delete(_ context.Context, id domainavailability.WindowID) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.writable(); err != nil {
		return err
	}
	delete(r.u.windows, id)
	r.u.deleted[id] = struct{}{}
	return nil
}

func (r windowRepo) filter(keep func(*domainavailability.Window) bool) []*domainavailability.Window {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()

	var out []*domainavailability.Window
	for id, w := range r.u.store.windows {
		if _, gone := r.u.deleted[id]; gone {
			continue
		}
		if _, staged := r.u.windows[id]; staged {
			continue
		}
		if keep(w) {
			out = append(out, cloneWindow(w))
		}
	}
	for _, w := range r.u.windows {
		if keep(w) {
			out = append(out, cloneWindow(w))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out
}

type unitOutbox struct{ u *unit }

func (o unitOutbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.u.mu.Lock()
	defer o.u.mu.Unlock()
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.records = append(o.u.records, record)
	return nil
}

func cloneProperty(p *domainproperty.Property) *domainproperty.Property {
	c := *p
	return &c
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	c := *b
	c.EventRecorder = events.EventRecorder{}
	if b.Cancellation != nil {
		cancel := *b.Cancellation
		c.Cancellation = &cancel
	}
	return &c
}

func cloneWindow(w *domainavailability.Window) *domainavailability.Window {
	c := *w
	c.EventRecorder = events.EventRecorder{}
	return &c
}
