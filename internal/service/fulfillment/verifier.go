package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
)

// StatusCache holds terminal outcomes and the first time a paid session was polled.
type StatusCache interface {
	GetOutcome(ctx context.Context, sessionKey string) (*domain.Outcome, error)
	SetOutcome(ctx context.Context, sessionKey string, outcome domain.Outcome) error
	MarkFirstSeen(ctx context.Context, sessionKey string, at time.Time, ttl time.Duration) (time.Time, error)
}

type VerifyUseCase interface {
	Verify(ctx context.Context, sessionKey string) (domain.Outcome, error)
}

// Verifier answers status polls and triggers reconciliation when the webhook
// appears to have been lost.
type Verifier struct {
	gateway    Gateway
	store      repository.BookingStore
	reconciler ReconcileUseCase
	cache      StatusCache
	grace      time.Duration
	seenTTL    time.Duration
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type VerifierOption func(*Verifier)

func WithStatusCache(c StatusCache) VerifierOption {
	return func(v *Verifier) {
		v.cache = c
	}
}

func WithGracePeriod(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.grace = d
	}
}

func WithVerifierMetrics(m *metrics.Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(gateway Gateway, store repository.BookingStore, reconciler ReconcileUseCase, log logger.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		gateway:    gateway,
		store:      store,
		reconciler: reconciler,
		grace:      10 * time.Second,
		seenTTL:    24 * time.Hour,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports the booking outcome for a session. The booking record is
// authoritative; the session marker is consulted only when no terminal record exists.
func (v *Verifier) Verify(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	if sessionKey == "" {
		return domain.Outcome{}, ErrMissingSessionKey
	}
	log := v.log.With("session_key", sessionKey)

	if cached := v.cached(ctx, sessionKey, log); cached != nil {
		v.metrics.ObserveStatusPoll("cache")
		return *cached, nil
	}

	rec, err := v.store.Get(ctx, sessionKey)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Outcome{}, fmt.Errorf("read booking record: %w", err)
	}
	if rec != nil && rec.State.IsTerminal() {
		outcome := domain.OutcomeFromRecord(rec)
		v.remember(ctx, sessionKey, outcome, log)
		v.metrics.ObserveStatusPoll("record")
		return outcome, nil
	}

	session, err := v.gateway.GetSession(ctx, sessionKey)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("retrieve payment session: %w", err)
	}
	if marker, ok := domain.MarkerFromMetadata(session.Metadata); ok {
		v.metrics.ObserveStatusPoll("marker")
		return marker.Outcome(), nil
	}
	if !session.Paid() {
		v.metrics.ObserveStatusPoll("unpaid")
		return domain.PendingOutcome(), nil
	}

	if v.now().Sub(v.firstSeen(ctx, session, rec, log)) < v.grace {
		v.metrics.ObserveStatusPoll("grace")
		return domain.Outcome{Status: domain.OutcomeProcessing}, nil
	}

	log.Info("no outcome after grace period, reconciling from status poll")
	outcome, err := v.reconciler.Reconcile(ctx, sessionKey)
	if err != nil {
		return domain.Outcome{}, err
	}
	v.metrics.ObserveStatusPoll("reconcile")
	if !outcome.IsTerminal() {
		// Payment is captured; the booking is still being worked on.
		return domain.Outcome{Status: domain.OutcomeProcessing}, nil
	}
	v.remember(ctx, sessionKey, outcome, log)
	return outcome, nil
}

func (v *Verifier) cached(ctx context.Context, sessionKey string, log logger.Logger) *domain.Outcome {
	if v.cache == nil {
		return nil
	}
	outcome, err := v.cache.GetOutcome(ctx, sessionKey)
	if err != nil {
		log.Warn("status cache read failed", "error", err)
		return nil
	}
	return outcome
}

func (v *Verifier) remember(ctx context.Context, sessionKey string, outcome domain.Outcome, log logger.Logger) {
	if v.cache == nil {
		return
	}
	if err := v.cache.SetOutcome(ctx, sessionKey, outcome); err != nil {
		log.Warn("status cache write failed", "error", err)
	}
}

// firstSeen is when the grace period started: the record's creation when a
// reconciliation already began, otherwise the first poll for the session.
func (v *Verifier) firstSeen(ctx context.Context, session *domain.PaymentSession, rec *domain.BookingRecord, log logger.Logger) time.Time {
	if rec != nil {
		return rec.CreatedAt
	}
	if v.cache != nil {
		seen, err := v.cache.MarkFirstSeen(ctx, session.Key, v.now(), v.seenTTL)
		if err == nil {
			return seen
		}
		log.Warn("first-seen mark failed", "error", err)
	}
	if !session.CreatedAt.IsZero() {
		return session.CreatedAt
	}
	return v.now()
}

var _ VerifyUseCase = (*Verifier)(nil)
