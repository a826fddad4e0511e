package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "rentme-reservations/internal/app/outbox"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

type propertyRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r propertyRepo) ByID(ctx context.Context, id domainproperty.PropertyID) (*domainproperty.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(r.u.InjectContext(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainproperty.ErrNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save replaces the projection; properties are written by the sync command only,
// which runs under the property lock.
func (r propertyRepo) Save(ctx context.Context, p *domainproperty.Property) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newPropertyDocument(p)
	doc.Version = p.Version + 1
	_, err := r.col.ReplaceOne(r.u.InjectContext(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

type bookingRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(r.u.InjectContext(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: booking %s", domainbooking.ErrNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r bookingRepo) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(r.u.InjectContext(ctx), filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r bookingRepo) ListOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"property_id":     string(propertyID),
		"range.check_in":  bson.M{"$lt": dr.CheckOut},
		"range.check_out": bson.M{"$gt": dr.CheckIn},
	}
	withStatuses(filter, statuses)
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r bookingRepo) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"renter_id": renterID}, newestFirst())
}

func (r bookingRepo) ListByOwner(ctx context.Context, ownerID string, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"owner_id": ownerID}
	withStatuses(filter, statuses)
	return r.find(ctx, filter, newestFirst())
}

func (r bookingRepo) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"status":          string(domainbooking.StatusConfirmed),
		"range.check_out": bson.M{"$lte": cutoff.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_out", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r bookingRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	ctx = r.u.InjectContext(ctx)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func withStatuses(filter bson.M, statuses []domainbooking.Status) {
	if len(statuses) == 0 {
		return
	}
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	filter["status"] = bson.M{"$in": values}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
}

type windowRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r windowRepo) ByID(ctx context.Context, id domainavailability.WindowID) (*domainavailability.Window, error) {
	var doc windowDocument
	if err := r.col.FindOne(r.u.InjectContext(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainavailability.ErrWindowNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r windowRepo) ListByProperty(ctx context.Context, propertyID domainproperty.PropertyID) ([]*domainavailability.Window, error) {
	return r.find(ctx, bson.M{"property_id": string(propertyID)})
}

func (r windowRepo) ListOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr daterange.DateRange) ([]*domainavailability.Window, error) {
	return r.find(ctx, bson.M{
		"property_id":     string(propertyID),
		"range.check_in":  bson.M{"$lt": dr.CheckOut},
		"range.check_out": bson.M{"$gt": dr.CheckIn},
	})
}

func (r windowRepo) Save(ctx context.Context, w *domainavailability.Window) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newWindowDocument(w)
	_, err := r.col.ReplaceOne(r.u.InjectContext(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r windowRepo) Delete(ctx context.Context, id domainavailability.WindowID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	res, err := r.col.DeleteOne(r.u.InjectContext(ctx), bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainavailability.ErrWindowNotFound
	}
	return nil
}

func (r windowRepo) find(ctx context.Context, filter bson.M) ([]*domainavailability.Window, error) {
	ctx = r.u.InjectContext(ctx)
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []windowDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainavailability.Window, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type unitOutbox struct {
	u   *Unit
	col *mongo.Collection
}

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	_, err := o.col.InsertOne(o.u.InjectContext(ctx), newOutboxDocument(record, time.Now().UTC()))
	return err
}
