package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedProcessing(store *memStore, key string, age time.Duration) {
	store.records[key] = domain.BookingRecord{SessionKey: key, State: domain.BookingStateProcessing, CreatedAt: fixedNow.Add(-age)}
}

func TestSweeper_Sweep(t *testing.T) {
	store := newMemStore()
	seedProcessing(store, "sess_old1", 10*time.Minute)
	seedProcessing(store, "sess_old2", 5*time.Minute)
	seedProcessing(store, "sess_old3", 4*time.Minute)
	seedProcessing(store, "sess_new", 30*time.Second)
	store.records["sess_done"] = domain.BookingRecord{
		SessionKey: "sess_done", State: domain.BookingStateConfirmed, OrderID: "ord_9", BookingReference: "XYZ999",
		CreatedAt: fixedNow.Add(-time.Hour),
	}

	locker := &MockLocker{}
	locker.On("AcquireReconcileLock", mock.Anything, "sess_old1", 30*time.Second).Return("tok_1", true, nil)
	locker.On("AcquireReconcileLock", mock.Anything, "sess_old2", 30*time.Second).Return("", false, nil)
	locker.On("AcquireReconcileLock", mock.Anything, "sess_old3", 30*time.Second).Return("tok_3", true, nil)
	locker.On("ReleaseReconcileLock", mock.Anything, "sess_old1", "tok_1").Return(nil).Once()
	locker.On("ReleaseReconcileLock", mock.Anything, "sess_old3", "tok_3").Return(nil).Once()

	settler := &MockSettler{}
	settler.On("Settle", mock.Anything, "sess_old1").Return(domain.ConfirmedOutcome("ord_1", "ABC123"), nil)
	settler.On("Settle", mock.Anything, "sess_old3").Return(domain.Outcome{}, errors.New("inventory unavailable"))

	s := NewSweeper(store, settler, locker, SweepConfig{MinAge: 2 * time.Minute, LockTTL: 30 * time.Second}, logger.NewNop(), nil)
	s.now = clock

	report, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 3, Settled: 1, Skipped: 1, Failed: 1}, report)
	settler.AssertNotCalled(t, "Settle", mock.Anything, "sess_old2")
	settler.AssertNotCalled(t, "Settle", mock.Anything, "sess_new")
	locker.AssertExpectations(t)
}

func TestSweeper_WithoutLocker(t *testing.T) {
	store := newMemStore()
	seedProcessing(store, "sess_1", 10*time.Minute)
	settler := &MockSettler{}
	settler.On("Settle", mock.Anything, "sess_1").Return(domain.PendingOutcome(), nil)

	s := NewSweeper(store, settler, nil, SweepConfig{MinAge: time.Minute}, logger.NewNop(), nil)
	s.now = clock

	report, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Pending: 1}, report)
}

type failingListStore struct {
	*memStore
}

func (failingListStore) ListStaleProcessing(context.Context, time.Time, int) ([]domain.BookingRecord, error) {
	return nil, errors.New("connection refused")
}

func TestSweeper_ListError(t *testing.T) {
	s := NewSweeper(failingListStore{newMemStore()}, &MockSettler{}, nil, SweepConfig{}, logger.NewNop(), nil)

	_, err := s.Sweep(context.Background())
	assert.ErrorContains(t, err, "list stale bookings")
}

func TestSweeper_SettlesThroughReconciler(t *testing.T) {
	deps := newReconcilerDeps(paidSession("sess_1", "draft_1", "off_1"))
	deps.drafts.On("Get", mock.Anything, "draft_1").Return(testDraft("draft_1", "off_1"), nil)
	deps.offers.On("GetOffer", mock.Anything, "off_1").Return(bookableOffer("off_1"), nil)
	deps.orders.On("CreateInstantOrder", mock.Anything, mock.Anything).
		Return(&domain.Order{ID: "ord_1", BookingReference: "ABC123"}, nil)
	deps.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// an earlier attempt created the record and then lost track of the order
	_, err := deps.store.InsertIfAbsent(context.Background(), &domain.BookingRecord{
		SessionKey:    "sess_1",
		OfferID:       "off_1",
		PassengerData: testDraft("draft_1", "off_1").PassengerData,
		AmountTotal:   48050,
		Currency:      "GBP",
		CreatedAt:     fixedNow.Add(-5 * time.Minute),
	})
	require.NoError(t, err)

	r := deps.reconciler()
	s := NewSweeper(deps.store, r, nil, SweepConfig{MinAge: 2 * time.Minute}, logger.NewNop(), nil)
	s.now = clock

	report, err := s.Sweep(context.Background())
	r.Drain()

	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, domain.BookingStateConfirmed, deps.store.record("sess_1").State)
}
