package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/kafka"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var ErrMissingSessionKey = errors.New("session key is required")

type Gateway interface {
	GetSession(ctx context.Context, sessionKey string) (*domain.PaymentSession, error)
	UpdateSessionMetadata(ctx context.Context, sessionKey string, marker domain.SessionMarker) error
}

type OfferFetcher interface {
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
}

type OrderCreator interface {
	CreateInstantOrder(ctx context.Context, req domain.InstantOrderRequest) (*domain.Order, error)
}

// OrderLookup finds an order already created for an offer. Returns nil, nil when none exists.
type OrderLookup interface {
	FindOrderForOffer(ctx context.Context, offerID string) (*domain.Order, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ReconcileUseCase interface {
	Reconcile(ctx context.Context, sessionKey string) (domain.Outcome, error)
}

// Reconciler turns a paid payment session into exactly one inventory order.
// It is the only writer of booking records and session markers.
type Reconciler struct {
	gateway        Gateway
	offers         OfferFetcher
	orders         OrderCreator
	lookup         OrderLookup
	store          repository.BookingStore
	drafts         repository.DraftRepository
	producer       Producer
	eventsTopic    string
	log            logger.Logger
	metrics        *metrics.Metrics
	group          singleflight.Group
	inflight       sync.WaitGroup
	runTimeout     time.Duration
	orderTimeout   time.Duration
	sideTimeout    time.Duration
	rereadAttempts int
	rereadDelay    time.Duration
	now            func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithEvents(producer Producer, topic string) ReconcilerOption {
	return func(r *Reconciler) {
		r.producer = producer
		r.eventsTopic = topic
	}
}

func WithMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithOrderTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.orderTimeout = d
	}
}

func WithConflictReread(attempts int, delay time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.rereadAttempts = attempts
		r.rereadDelay = delay
	}
}

func WithOrderLookup(l OrderLookup) ReconcilerOption {
	return func(r *Reconciler) {
		r.lookup = l
	}
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

func NewReconciler(
	gateway Gateway,
	offers OfferFetcher,
	orders OrderCreator,
	store repository.BookingStore,
	drafts repository.DraftRepository,
	log logger.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		gateway:        gateway,
		offers:         offers,
		orders:         orders,
		store:          store,
		drafts:         drafts,
		log:            log,
		runTimeout:     time.Minute,
		orderTimeout:   8 * time.Second,
		sideTimeout:    5 * time.Second,
		rereadAttempts: 5,
		rereadDelay:    250 * time.Millisecond,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rereadAttempts < 1 {
		r.rereadAttempts = 1
	}
	return r
}

// Reconcile is safe to call concurrently for the same session; concurrent calls
// in this process share one execution and cross-process races are settled by the
// store's conditional writes.
//
// The shared execution is detached from the caller: a caller whose ctx ends gets
// ctx.Err() back while the run continues for everyone else.
func (r *Reconciler) Reconcile(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	if sessionKey == "" {
		return domain.Outcome{}, ErrMissingSessionKey
	}
	ch := r.group.DoChan(sessionKey, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.runTimeout)
		defer cancel()
		return r.reconcile(runCtx, sessionKey)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.metrics.ObserveReconcile("error")
			return domain.Outcome{}, res.Err
		}
		outcome := res.Val.(domain.Outcome)
		r.metrics.ObserveReconcile(string(outcome.Status))
		return outcome, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// Settle reconciles and, when the outcome is terminal but the record is still
// processing (the record write failed after the marker was set), brings the
// record in line with the outcome.
func (r *Reconciler) Settle(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	outcome, err := r.Reconcile(ctx, sessionKey)
	if err != nil || !outcome.IsTerminal() {
		return outcome, err
	}

	rec, err := r.store.Get(ctx, sessionKey)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return outcome, nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("read booking record: %w", err)
	}
	if rec.State.IsTerminal() {
		return domain.OutcomeFromRecord(rec), nil
	}

	next := domain.BookingStateConfirmed
	fields := domain.TerminalFields{OrderID: outcome.OrderID, BookingReference: outcome.BookingReference}
	if outcome.Status == domain.OutcomeFailed {
		next = domain.BookingStateFailed
		fields = domain.TerminalFields{
			FailureReason: outcome.Reason,
			ErrorDetail:   "recovered from payment session marker: " + outcome.ErrorDetail,
		}
	}
	return r.commit(ctx, rec, next, fields, r.log.With("session_key", sessionKey))
}

// Drain waits for in-flight notifications.
func (r *Reconciler) Drain() {
	r.inflight.Wait()
}

func (r *Reconciler) reconcile(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	log := r.log.With("session_key", sessionKey)

	session, err := r.gateway.GetSession(ctx, sessionKey)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("retrieve payment session: %w", err)
	}
	if !session.Paid() {
		return domain.PendingOutcome(), nil
	}
	if marker, ok := domain.MarkerFromMetadata(session.Metadata); ok {
		return marker.Outcome(), nil
	}

	draftID := session.Metadata[domain.MetaDraftID]
	if draftID == "" {
		log.Warn("paid session carries no checkout draft",
			"offer_id", session.Metadata[domain.MetaOfferID], "hold_order_id", session.Metadata[domain.MetaHoldOrderID])
		return domain.PendingOutcome(), nil
	}

	rec, err := r.ensureRecord(ctx, session, log)
	if err != nil {
		return domain.Outcome{}, err
	}
	if rec.State.IsTerminal() {
		outcome := domain.OutcomeFromRecord(rec)
		r.writeMarker(ctx, sessionKey, outcome, log)
		return outcome, nil
	}

	if rec.OfferID == "" {
		// Nothing to fulfill yet; the record stays processing for the sweeper.
		log.Warn("booking has no offer to fulfill", "draft_id", draftID)
		return domain.PendingOutcome(), nil
	}
	if len(rec.PassengerData.Passengers) == 0 {
		return r.fail(ctx, rec, domain.ReasonMissingPassengerData,
			fmt.Sprintf("checkout draft %s has no passengers or no longer exists", draftID), log)
	}

	return r.fulfill(ctx, rec, log.With("offer_id", rec.OfferID))
}

func (r *Reconciler) ensureRecord(ctx context.Context, session *domain.PaymentSession, log logger.Logger) (*domain.BookingRecord, error) {
	existing, err := r.store.Get(ctx, session.Key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("read booking record: %w", err)
	}

	rec := &domain.BookingRecord{
		SessionKey:    session.Key,
		State:         domain.BookingStateProcessing,
		CustomerEmail: session.CustomerEmail,
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
		OfferID:       session.Metadata[domain.MetaOfferID],
		CreatedAt:     r.now().UTC(),
	}

	draftID := session.Metadata[domain.MetaDraftID]
	draft, err := r.drafts.Get(ctx, draftID)
	switch {
	case err == nil:
		rec.PassengerData = draft.PassengerData
		if rec.CustomerEmail == "" {
			rec.CustomerEmail = draft.CustomerEmail
		}
		if rec.OfferID == "" {
			rec.OfferID = draft.OfferID
		}
	case errors.Is(err, domain.ErrDraftNotFound):
		log.Error("checkout draft missing for paid session", "draft_id", draftID)
	default:
		return nil, fmt.Errorf("load checkout draft: %w", err)
	}

	stored, err := r.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert booking record: %w", err)
	}
	return stored, nil
}

func (r *Reconciler) fulfill(ctx context.Context, rec *domain.BookingRecord, log logger.Logger) (domain.Outcome, error) {
	offer, err := r.offers.GetOffer(ctx, rec.OfferID)
	if errors.Is(err, domain.ErrOfferNotFound) {
		return r.fail(ctx, rec, domain.ReasonOfferUnavailable, fmt.Sprintf("offer %s is no longer available", rec.OfferID), log)
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("refresh offer: %w", err)
	}
	if now := r.now(); !offer.Bookable(now) {
		return r.fail(ctx, rec, domain.ReasonOfferUnavailable,
			fmt.Sprintf("offer %s expired at %s", offer.ID, offer.ExpiresAt.Format(time.RFC3339)), log)
	}
	quoted := rec.PassengerData
	if quoted.OfferAmount != offer.TotalAmount || !strings.EqualFold(quoted.OfferCurrency, offer.Currency) {
		return r.fail(ctx, rec, domain.ReasonPriceChanged,
			fmt.Sprintf("offer %s repriced from %d %s to %d %s", offer.ID, quoted.OfferAmount, quoted.OfferCurrency, offer.TotalAmount, offer.Currency), log)
	}

	orderCtx, cancel := context.WithTimeout(ctx, r.orderTimeout)
	started := time.Now()
	order, err := r.orders.CreateInstantOrder(orderCtx, domain.InstantOrderRequest{
		OfferID:    rec.OfferID,
		Passengers: quoted.Passengers,
		Services:   quoted.Services,
		Payment:    domain.OrderPayment{Amount: rec.AmountTotal, Currency: rec.Currency},
	})
	cancel()
	r.metrics.ObserveOrderCreate(time.Since(started))

	if err != nil {
		var orderErr *domain.OrderError
		switch {
		case errors.Is(err, domain.ErrOrderConflict):
			log.Warn("order already exists for offer, adopting stored outcome", "error", err)
			return r.resolveConflict(ctx, rec, log)
		case errors.As(err, &orderErr):
			return r.fail(ctx, rec, domain.ReasonOrderRejected, orderErr.Error(), log)
		default:
			log.Warn("order outcome unknown, booking left processing", "error", err)
			return domain.PendingOutcome(), nil
		}
	}

	log.Info("order created", "order_id", order.ID, "booking_reference", order.BookingReference)
	return r.commit(ctx, rec, domain.BookingStateConfirmed,
		domain.TerminalFields{OrderID: order.ID, BookingReference: order.BookingReference}, log)
}

func (r *Reconciler) fail(ctx context.Context, rec *domain.BookingRecord, reason, detail string, log logger.Logger) (domain.Outcome, error) {
	log.Warn("booking failed", "reason", reason, "detail", detail)
	return r.commit(ctx, rec, domain.BookingStateFailed,
		domain.TerminalFields{FailureReason: reason, ErrorDetail: detail}, log)
}

// commit performs the processing -> terminal transition. The first committer
// wins; a losing writer returns the stored outcome instead of its own.
func (r *Reconciler) commit(ctx context.Context, rec *domain.BookingRecord, next domain.BookingState, fields domain.TerminalFields, log logger.Logger) (domain.Outcome, error) {
	outcome := domain.ConfirmedOutcome(fields.OrderID, fields.BookingReference)
	if next == domain.BookingStateFailed {
		outcome = domain.FailedOutcome(fields.FailureReason)
	}

	ok, err := r.store.CompareAndSetState(ctx, rec.SessionKey, domain.BookingStateProcessing, next, fields)
	if err != nil {
		if next == domain.BookingStateConfirmed {
			// The order exists; the marker keeps later attempts from booking again.
			log.Error("order created but booking record not updated", "order_id", fields.OrderID, "error", err)
			r.writeMarker(ctx, rec.SessionKey, outcome, log)
			return outcome, nil
		}
		return domain.Outcome{}, fmt.Errorf("record booking outcome: %w", err)
	}

	if !ok {
		current, err := r.store.Get(ctx, rec.SessionKey)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("re-read booking record: %w", err)
		}
		stored := domain.OutcomeFromRecord(current)
		if next == domain.BookingStateConfirmed && current.OrderID != fields.OrderID {
			log.Error("order created for a booking already settled elsewhere",
				"order_id", fields.OrderID, "stored_state", current.State, "stored_order_id", current.OrderID)
		}
		return stored, nil
	}

	r.writeMarker(ctx, rec.SessionKey, outcome, log)
	r.notify(rec, outcome, log)
	return outcome, nil
}

func (r *Reconciler) resolveConflict(ctx context.Context, rec *domain.BookingRecord, log logger.Logger) (domain.Outcome, error) {
	for attempt := 0; attempt < r.rereadAttempts; attempt++ {
		current, err := r.store.Get(ctx, rec.SessionKey)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Outcome{}, fmt.Errorf("re-read booking record: %w", err)
		}
		if current != nil && current.State.IsTerminal() {
			return domain.OutcomeFromRecord(current), nil
		}
		if attempt == r.rereadAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return domain.PendingOutcome(), nil
		case <-time.After(r.rereadDelay):
		}
	}

	if r.lookup != nil {
		order, err := r.lookup.FindOrderForOffer(ctx, rec.OfferID)
		if err != nil {
			log.Warn("order lookup after conflict failed", "error", err)
		} else if order != nil {
			log.Info("adopting existing order after conflict", "order_id", order.ID)
			return r.commit(ctx, rec, domain.BookingStateConfirmed,
				domain.TerminalFields{OrderID: order.ID, BookingReference: order.BookingReference}, log)
		}
	}

	log.Error("order conflict unresolved, booking left processing for manual review")
	return domain.PendingOutcome(), nil
}

func (r *Reconciler) writeMarker(ctx context.Context, sessionKey string, outcome domain.Outcome, log logger.Logger) {
	markerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sideTimeout)
	defer cancel()
	if err := r.gateway.UpdateSessionMetadata(markerCtx, sessionKey, domain.MarkerFromOutcome(outcome)); err != nil {
		log.Warn("failed to write payment session marker", "error", err)
	}
}

func (r *Reconciler) notify(rec *domain.BookingRecord, outcome domain.Outcome, log logger.Logger) {
	if r.producer == nil || r.eventsTopic == "" {
		return
	}

	event := kafka.BookingEvent{
		ID:               uuid.NewString(),
		Type:             kafka.EventBookingConfirmed,
		SessionKey:       rec.SessionKey,
		OrderID:          outcome.OrderID,
		BookingReference: outcome.BookingReference,
		Reason:           outcome.Reason,
		Email:            rec.CustomerEmail,
		AmountTotal:      rec.AmountTotal,
		Currency:         rec.Currency,
		OccurredAt:       r.now().UTC(),
	}
	if outcome.Status == domain.OutcomeFailed {
		event.Type = kafka.EventBookingFailed
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.sideTimeout)
		defer cancel()
		if err := r.producer.Publish(ctx, r.eventsTopic, event.SessionKey, event); err != nil {
			log.Warn("failed to publish booking event", "type", event.Type, "error", err)
		}
	}()
}

var _ ReconcileUseCase = (*Reconciler)(nil)
