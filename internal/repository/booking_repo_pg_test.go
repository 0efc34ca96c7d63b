package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingStore(t *testing.T) {
	pool := &pgxpool.Pool{}
	store := NewBookingStore(pool)
	assert.NotNil(t, store)
}

func TestNewDraftRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewDraftRepository(pool)
	assert.NotNil(t, repo)
}

func TestPGBookingStore_RejectsInvalidTransitionBeforeQuerying(t *testing.T) {
	store := NewBookingStore(&pgxpool.Pool{})

	ok, err := store.CompareAndSetState(context.Background(), "sess_1",
		domain.BookingStateConfirmed, domain.BookingStateFailed, domain.TerminalFields{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.False(t, ok)

	ok, err = store.CompareAndSetState(context.Background(), "sess_1",
		domain.BookingStateProcessing, domain.BookingStateConfirmed, domain.TerminalFields{OrderID: "ord_1"})
	assert.Error(t, err)
	assert.False(t, ok)
}

var pgBookingColumns = []string{"session_key", "state", "customer_email", "amount_total", "currency", "passenger_data",
	"offer_id", "booking_reference", "order_id", "failure_reason", "error_detail", "created_at", "updated_at"}

func TestPGBookingStore_InsertIfAbsent_ReturnsExistingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO booking_records").
		WithArgs("sess_1", domain.BookingStateProcessing, "ada@example.com", int64(48050), "GBP",
			pgxmock.AnyArg(), "off_1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT (.+) FROM booking_records WHERE session_key").
		WithArgs("sess_1").
		WillReturnRows(mock.NewRows(pgBookingColumns).AddRow(
			"sess_1", domain.BookingStateConfirmed, "ada@example.com", int64(48050), "GBP",
			[]byte(`{"passengers":[{"id":"pas_1","given_name":"Ada","family_name":"Lovelace"}]}`), "off_1",
			"ABC123", "ord_1", "", "", created, created.Add(time.Second)))

	store := NewBookingStore(mock)
	rec, err := store.InsertIfAbsent(context.Background(), &domain.BookingRecord{
		SessionKey:    "sess_1",
		CustomerEmail: "ada@example.com",
		AmountTotal:   48050,
		Currency:      "GBP",
		OfferID:       "off_1",
		CreatedAt:     created.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStateConfirmed, rec.State)
	assert.Equal(t, "ord_1", rec.OrderID)
	assert.Equal(t, "ABC123", rec.BookingReference)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Len(t, rec.PassengerData.Passengers, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGBookingStore_CompareAndSetState_TerminalRowNotUpdated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE booking_records").
		WithArgs("sess_1", domain.BookingStateProcessing, domain.BookingStateFailed, "", "",
			domain.ReasonOfferUnavailable, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewBookingStore(mock)
	ok, err := store.CompareAndSetState(context.Background(), "sess_1",
		domain.BookingStateProcessing, domain.BookingStateFailed,
		domain.TerminalFields{FailureReason: domain.ReasonOfferUnavailable})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGBookingStore_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM booking_records").
		WithArgs("sess_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewBookingStore(mock).Get(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
