package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
)

type Settler interface {
	Settle(ctx context.Context, sessionKey string) (domain.Outcome, error)
}

// Locker keeps two worker replicas from sweeping the same session at once.
type Locker interface {
	AcquireReconcileLock(ctx context.Context, sessionKey string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseReconcileLock(ctx context.Context, sessionKey, token string) error
}

type SweepConfig struct {
	MinAge  time.Duration
	Batch   int
	LockTTL time.Duration
}

type SweepReport struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Pending int `json:"pending"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweeper re-runs reconciliation for bookings stuck in processing, e.g. after an
// order call with an unknown outcome or a crash between order and record write.
type Sweeper struct {
	store   repository.BookingStore
	settler Settler
	locker  Locker
	cfg     SweepConfig
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSweeper(store repository.BookingStore, settler Settler, locker Locker, cfg SweepConfig, log logger.Logger, m *metrics.Metrics) *Sweeper {
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Sweeper{
		store:   store,
		settler: settler,
		locker:  locker,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	stale, err := s.store.ListStaleProcessing(ctx, s.now().Add(-s.cfg.MinAge), s.cfg.Batch)
	if err != nil {
		return report, fmt.Errorf("list stale bookings: %w", err)
	}
	report.Scanned = len(stale)

	for _, rec := range stale {
		if ctx.Err() != nil {
			break
		}
		result := s.sweepOne(ctx, rec.SessionKey)
		s.metrics.ObserveSweep(result)
		switch result {
		case "settled":
			report.Settled++
		case "pending":
			report.Pending++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
	}

	if report.Scanned > 0 {
		s.log.Info("sweep finished", "scanned", report.Scanned, "settled", report.Settled,
			"pending", report.Pending, "skipped", report.Skipped, "failed", report.Failed)
	}
	return report, ctx.Err()
}

func (s *Sweeper) sweepOne(ctx context.Context, sessionKey string) string {
	log := s.log.With("session_key", sessionKey)

	if s.locker != nil {
		token, ok, err := s.locker.AcquireReconcileLock(ctx, sessionKey, s.cfg.LockTTL)
		if err != nil {
			log.Warn("failed to acquire sweep lock", "error", err)
			return "error"
		}
		if !ok {
			return "skipped"
		}
		defer func() {
			if err := s.locker.ReleaseReconcileLock(context.WithoutCancel(ctx), sessionKey, token); err != nil {
				log.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	outcome, err := s.settler.Settle(ctx, sessionKey)
	if err != nil {
		log.Error("sweep reconciliation failed", "error", err)
		return "error"
	}
	if outcome.IsTerminal() {
		return "settled"
	}
	return "pending"
}
