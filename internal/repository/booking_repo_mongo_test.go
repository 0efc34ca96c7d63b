package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestBookingDocument_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	rec := &domain.BookingRecord{
		SessionKey:    "sess_1",
		State:         domain.BookingStateConfirmed,
		CustomerEmail: "ada@example.com",
		AmountTotal:   45000,
		Currency:      "GBP",
		PassengerData: domain.PassengerData{
			Passengers:    []domain.Passenger{{ID: "pas_1", GivenName: "Ada", FamilyName: "Lovelace"}},
			OfferAmount:   45000,
			OfferCurrency: "GBP",
		},
		OfferID:          "off_1",
		OrderID:          "ord_1",
		BookingReference: "ABC123",
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	raw, err := bson.Marshal(toBookingDocument(rec))
	assert.NoError(t, err)

	var decoded bookingDocument
	assert.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, rec, decoded.toRecord())
}

func TestMongoBookingStore_RejectsInvalidTransitionBeforeQuerying(t *testing.T) {
	store := &MongoBookingStore{}

	ok, err := store.CompareAndSetState(context.Background(), "sess_1",
		domain.BookingStateFailed, domain.BookingStateConfirmed, domain.TerminalFields{OrderID: "ord_1", BookingReference: "ABC"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.False(t, ok)
}

func TestWebhookEvent_TableName(t *testing.T) {
	assert.Equal(t, "payment_webhook_events", WebhookEvent{}.TableName())
	assert.NotNil(t, NewWebhookEventLog(nil))
}

func mongoDocument(t *testing.T, rec *domain.BookingRecord) bson.D {
	raw, err := bson.Marshal(toBookingDocument(rec))
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestMongoBookingStore_WithDriver(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate insert returns existing document", func(mt *mtest.T) {
		ctx := context.Background()
		created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		existing := &domain.BookingRecord{
			SessionKey:       "sess_1",
			State:            domain.BookingStateConfirmed,
			CustomerEmail:    "ada@example.com",
			AmountTotal:      48050,
			Currency:         "GBP",
			OfferID:          "off_1",
			OrderID:          "ord_1",
			BookingReference: "ABC123",
			CreatedAt:        created,
			UpdatedAt:        created.Add(time.Second),
		}

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store, err := NewMongoBookingStore(ctx, mt.DB)
		require.NoError(mt, err)

		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateCursorResponse(0, mt.DB.Name()+".booking_records", mtest.FirstBatch, mongoDocument(mt.T, existing)),
		)

		rec, err := store.InsertIfAbsent(ctx, &domain.BookingRecord{
			SessionKey: "sess_1",
			OfferID:    "off_1",
			CreatedAt:  created.Add(time.Minute),
		})
		require.NoError(mt, err)
		assert.Equal(mt, domain.BookingStateConfirmed, rec.State)
		assert.Equal(mt, "ord_1", rec.OrderID)
		assert.Equal(mt, created, rec.CreatedAt)
	})

	mt.Run("compare and set on terminal document reports false", func(mt *mtest.T) {
		store := &MongoBookingStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		ok, err := store.CompareAndSetState(context.Background(), "sess_1",
			domain.BookingStateProcessing, domain.BookingStateConfirmed,
			domain.TerminalFields{OrderID: "ord_2", BookingReference: "XYZ789"})
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("get missing document", func(mt *mtest.T) {
		store := &MongoBookingStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.Coll.Database().Name()+"."+mt.Coll.Name(), mtest.FirstBatch))

		_, err := store.Get(context.Background(), "sess_missing")
		assert.ErrorIs(mt, err, domain.ErrRecordNotFound)
	})
}
