package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingStore keeps booking records in a collection with a unique index on sessionKey.
type MongoBookingStore struct {
	collection *mongo.Collection
}

type bookingDocument struct {
	SessionKey       string               `bson:"sessionKey"`
	State            string               `bson:"state"`
	CustomerEmail    string               `bson:"customerEmail"`
	AmountTotal      int64                `bson:"amountTotal"`
	Currency         string               `bson:"currency"`
	PassengerData    domain.PassengerData `bson:"passengerData"`
	OfferID          string               `bson:"offerId"`
	BookingReference string               `bson:"bookingReference"`
	OrderID          string               `bson:"orderId"`
	FailureReason    string               `bson:"failureReason"`
	ErrorDetail      string               `bson:"errorDetail"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

// NewMongoBookingStore ensures the unique sessionKey index before returning the store.
func NewMongoBookingStore(ctx context.Context, db *mongo.Database) (*MongoBookingStore, error) {
	collection := db.Collection("booking_records")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create booking indexes: %w", err)
	}

	return &MongoBookingStore{collection: collection}, nil
}

func (r *MongoBookingStore) InsertIfAbsent(ctx context.Context, rec *domain.BookingRecord) (*domain.BookingRecord, error) {
	doc := toBookingDocument(rec)
	doc.State = string(domain.BookingStateProcessing)
	doc.UpdatedAt = doc.CreatedAt

	if _, err := r.collection.InsertOne(ctx, doc); err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("insert booking record: %w", err)
	}
	return r.Get(ctx, rec.SessionKey)
}

func (r *MongoBookingStore) CompareAndSetState(ctx context.Context, sessionKey string, expected, next domain.BookingState, fields domain.TerminalFields) (bool, error) {
	if err := domain.ValidateTransition(expected, next, fields); err != nil {
		return false, err
	}

	filter := bson.M{"sessionKey": sessionKey, "state": string(expected)}
	update := bson.M{"$set": bson.M{
		"state":            string(next),
		"orderId":          fields.OrderID,
		"bookingReference": fields.BookingReference,
		"failureReason":    fields.FailureReason,
		"errorDetail":      fields.ErrorDetail,
		"updatedAt":        time.Now().UTC(),
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update booking state: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoBookingStore) Get(ctx context.Context, sessionKey string) (*domain.BookingRecord, error) {
	var doc bookingDocument
	err := r.collection.FindOne(ctx, bson.M{"sessionKey": sessionKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toRecord(), nil
}

func (r *MongoBookingStore) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.BookingRecord, error) {
	filter := bson.M{
		"state":     string(domain.BookingStateProcessing),
		"createdAt": bson.M{"$lte": olderThan},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stale []domain.BookingRecord
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		stale = append(stale, *doc.toRecord())
	}
	return stale, cursor.Err()
}

func toBookingDocument(rec *domain.BookingRecord) bookingDocument {
	return bookingDocument{
		SessionKey:       rec.SessionKey,
		State:            string(rec.State),
		CustomerEmail:    rec.CustomerEmail,
		AmountTotal:      rec.AmountTotal,
		Currency:         rec.Currency,
		PassengerData:    rec.PassengerData,
		OfferID:          rec.OfferID,
		BookingReference: rec.BookingReference,
		OrderID:          rec.OrderID,
		FailureReason:    rec.FailureReason,
		ErrorDetail:      rec.ErrorDetail,
		CreatedAt:        rec.CreatedAt.UTC(),
		UpdatedAt:        rec.UpdatedAt.UTC(),
	}
}

func (d bookingDocument) toRecord() *domain.BookingRecord {
	return &domain.BookingRecord{
		SessionKey:       d.SessionKey,
		State:            domain.BookingState(d.State),
		CustomerEmail:    d.CustomerEmail,
		AmountTotal:      d.AmountTotal,
		Currency:         d.Currency,
		PassengerData:    d.PassengerData,
		OfferID:          d.OfferID,
		BookingReference: d.BookingReference,
		OrderID:          d.OrderID,
		FailureReason:    d.FailureReason,
		ErrorDetail:      d.ErrorDetail,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

var _ BookingStore = (*MongoBookingStore)(nil)
