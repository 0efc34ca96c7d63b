package fulfillment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/stretchr/testify/mock"
)

var errNoSession = errors.New("no such session")

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// memStore is an in-memory BookingStore with the same conditional-write
// semantics as the database implementations.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.BookingRecord
	inserts int
	casErr  error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.BookingRecord{}}
}

func (s *memStore) InsertIfAbsent(_ context.Context, rec *domain.BookingRecord) (*domain.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.SessionKey]; ok {
		return &existing, nil
	}
	stored := *rec
	stored.State = domain.BookingStateProcessing
	stored.UpdatedAt = stored.CreatedAt
	s.records[rec.SessionKey] = stored
	s.inserts++
	return &stored, nil
}

func (s *memStore) CompareAndSetState(_ context.Context, sessionKey string, expected, next domain.BookingState, fields domain.TerminalFields) (bool, error) {
	if err := domain.ValidateTransition(expected, next, fields); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casErr != nil {
		return false, s.casErr
	}
	rec, ok := s.records[sessionKey]
	if !ok || rec.State != expected {
		return false, nil
	}
	rec.State = next
	rec.OrderID = fields.OrderID
	rec.BookingReference = fields.BookingReference
	rec.FailureReason = fields.FailureReason
	rec.ErrorDetail = fields.ErrorDetail
	s.records[sessionKey] = rec
	return true, nil
}

func (s *memStore) Get(_ context.Context, sessionKey string) (*domain.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[sessionKey]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *memStore) ListStaleProcessing(_ context.Context, olderThan time.Time, limit int) ([]domain.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BookingRecord
	for _, rec := range s.records {
		if rec.State == domain.BookingStateProcessing && !rec.CreatedAt.After(olderThan) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) record(sessionKey string) domain.BookingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[sessionKey]
}

// fakeGateway keeps sessions in memory and applies marker writes to their metadata.
type fakeGateway struct {
	mu           sync.Mutex
	sessions     map[string]*domain.PaymentSession
	markerWrites int
	updateErr    error
}

func newFakeGateway(sessions ...*domain.PaymentSession) *fakeGateway {
	g := &fakeGateway{sessions: map[string]*domain.PaymentSession{}}
	for _, s := range sessions {
		g.sessions[s.Key] = s
	}
	return g
}

func (g *fakeGateway) GetSession(_ context.Context, sessionKey string) (*domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionKey]
	if !ok {
		return nil, errNoSession
	}
	cp := *s
	cp.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

func (g *fakeGateway) UpdateSessionMetadata(_ context.Context, sessionKey string, marker domain.SessionMarker) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	g.markerWrites++
	for k, v := range marker.Metadata() {
		g.sessions[sessionKey].Metadata[k] = v
	}
	return nil
}

func (g *fakeGateway) writes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.markerWrites
}

type MockOfferFetcher struct {
	mock.Mock
}

func (m *MockOfferFetcher) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

type MockOrderCreator struct {
	mock.Mock
}

func (m *MockOrderCreator) CreateInstantOrder(ctx context.Context, req domain.InstantOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockOrderLookup struct {
	mock.Mock
}

func (m *MockOrderLookup) FindOrderForOffer(ctx context.Context, offerID string) (*domain.Order, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockDraftRepository struct {
	mock.Mock
}

func (m *MockDraftRepository) Create(ctx context.Context, draft *domain.CheckoutDraft) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockDraftRepository) Get(ctx context.Context, id string) (*domain.CheckoutDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutDraft), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockStatusCache struct {
	mock.Mock
}

func (m *MockStatusCache) GetOutcome(ctx context.Context, sessionKey string) (*domain.Outcome, error) {
	args := m.Called(ctx, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Outcome), args.Error(1)
}

func (m *MockStatusCache) SetOutcome(ctx context.Context, sessionKey string, outcome domain.Outcome) error {
	args := m.Called(ctx, sessionKey, outcome)
	return args.Error(0)
}

func (m *MockStatusCache) MarkFirstSeen(ctx context.Context, sessionKey string, at time.Time, ttl time.Duration) (time.Time, error) {
	args := m.Called(ctx, sessionKey, at, ttl)
	return args.Get(0).(time.Time), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	args := m.Called(ctx, sessionKey)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	args := m.Called(ctx, sessionKey)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireReconcileLock(ctx context.Context, sessionKey string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, sessionKey, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) ReleaseReconcileLock(ctx context.Context, sessionKey, token string) error {
	args := m.Called(ctx, sessionKey, token)
	return args.Error(0)
}

func paidSession(key, draftID, offerID string) *domain.PaymentSession {
	md := map[string]string{}
	if draftID != "" {
		md[domain.MetaDraftID] = draftID
	}
	if offerID != "" {
		md[domain.MetaOfferID] = offerID
	}
	return &domain.PaymentSession{
		Key:           key,
		PaymentStatus: domain.PaymentStatusPaid,
		Metadata:      md,
		CustomerEmail: "ada@example.com",
		AmountTotal:   48050,
		Currency:      "GBP",
		CreatedAt:     fixedNow.Add(-time.Minute),
	}
}

func testDraft(id, offerID string) *domain.CheckoutDraft {
	return &domain.CheckoutDraft{
		ID:      id,
		OfferID: offerID,
		PassengerData: domain.PassengerData{
			Passengers: []domain.Passenger{{
				ID:         "pas_1",
				Type:       "adult",
				GivenName:  "Ada",
				FamilyName: "Lovelace",
				BornOn:     "1990-12-10",
				Email:      "ada@example.com",
			}},
			Services:      []domain.SelectedService{{ID: "ase_1", Quantity: 1}},
			OfferAmount:   45050,
			OfferCurrency: "GBP",
		},
		CustomerEmail: "ada@example.com",
		AmountTotal:   48050,
		Currency:      "GBP",
	}
}

func bookableOffer(id string) *domain.Offer {
	return &domain.Offer{
		ID:          id,
		TotalAmount: 45050,
		Currency:    "GBP",
		ExpiresAt:   fixedNow.Add(time.Hour),
		Passengers:  []domain.OfferPassenger{{ID: "pas_1", Type: "adult"}},
	}
}
