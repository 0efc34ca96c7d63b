package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Domenick1991/bookingfulfillment/api"
	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/cache"
	"github.com/Domenick1991/bookingfulfillment/internal/inventory"
	"github.com/Domenick1991/bookingfulfillment/internal/kafka"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/Domenick1991/bookingfulfillment/internal/payment"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
	"github.com/Domenick1991/bookingfulfillment/internal/service/checkout"
	"github.com/Domenick1991/bookingfulfillment/internal/service/fulfillment"
	"github.com/Domenick1991/bookingfulfillment/internal/service/hold"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Deps holds every long-lived collaborator shared by the binaries.
type Deps struct {
	Config     *config.Config
	Log        logger.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Store      repository.BookingStore
	Drafts     repository.DraftRepository
	EventLog   repository.WebhookEventLog
	Cache      *cache.RedisCache
	Producer   *kafka.Producer
	Inventory  *inventory.Client
	Gateway    *payment.Gateway
	Reconciler *fulfillment.Reconciler
	Verifier   *fulfillment.Verifier

	closers []func() error
}

// NewDeps connects to every backend named in cfg. On error, anything already
// opened is closed.
func NewDeps(ctx context.Context, cfg *config.Config, log logger.Logger) (deps *Deps, err error) {
	d := &Deps{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	d.Metrics = metrics.NewMetrics(cfg.Metrics.Namespace, d.Registry)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	d.closers = append(d.closers, func() error { pool.Close(); return nil })
	if err := repository.Migrate(ctx, pool); err != nil {
		return nil, err
	}
	d.Drafts = repository.NewDraftRepository(pool)

	if err := d.openStore(ctx, pool); err != nil {
		return nil, err
	}
	if err := d.openEventLog(); err != nil {
		return nil, err
	}

	d.Cache = cache.NewRedisCache(cfg.Redis, cfg.Fulfillment.StatusCacheTTL)
	d.closers = append(d.closers, d.Cache.Close)

	d.Inventory = inventory.NewClient(cfg.Inventory, log)
	d.Gateway = payment.NewGateway(cfg.Payment, log)

	opts := []fulfillment.ReconcilerOption{
		fulfillment.WithMetrics(d.Metrics),
		fulfillment.WithOrderTimeout(cfg.Fulfillment.OrderTimeout),
		fulfillment.WithConflictReread(cfg.Fulfillment.ConflictRereadAttempts, cfg.Fulfillment.ConflictRereadDelay),
		fulfillment.WithOrderLookup(d.Inventory),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		d.Producer = kafka.NewProducer(cfg.Kafka.Brokers)
		d.closers = append(d.closers, d.Producer.Close)
		opts = append(opts, fulfillment.WithEvents(d.Producer, cfg.Kafka.BookingEventsTopic))
	} else {
		log.Warn("kafka brokers not configured, booking events disabled")
	}

	d.Reconciler = fulfillment.NewReconciler(d.Gateway, d.Inventory, d.Inventory, d.Store, d.Drafts, log, opts...)
	// closers run in reverse, so pending notifications drain before the producer closes
	d.closers = append(d.closers, func() error { d.Reconciler.Drain(); return nil })

	d.Verifier = fulfillment.NewVerifier(d.Gateway, d.Store, d.Reconciler, log,
		fulfillment.WithStatusCache(d.Cache),
		fulfillment.WithGracePeriod(cfg.Fulfillment.FallbackGracePeriod),
		fulfillment.WithVerifierMetrics(d.Metrics),
	)

	return d, nil
}

func (d *Deps) openStore(ctx context.Context, pool *pgxpool.Pool) error {
	switch d.Config.Store.Driver {
	case config.StoreDriverPostgres:
		d.Store = repository.NewBookingStore(pool)
		return nil
	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.Config.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		d.closers = append(d.closers, func() error { return client.Disconnect(context.Background()) })
		store, err := repository.NewMongoBookingStore(ctx, client.Database(d.Config.Mongo.Database))
		if err != nil {
			return err
		}
		d.Store = store
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", d.Config.Store.Driver)
	}
}

func (d *Deps) openEventLog() error {
	db, err := gorm.Open(postgres.Open(d.Config.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open webhook event log: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("open webhook event log: %w", err)
	}
	d.closers = append(d.closers, sqlDB.Close)

	eventLog := repository.NewWebhookEventLog(db)
	if err := eventLog.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate webhook event log: %w", err)
	}
	d.EventLog = eventLog
	return nil
}

// Router builds the public HTTP API.
func (d *Deps) Router() http.Handler {
	holdService := hold.NewHoldService(d.Inventory, d.Inventory, d.Log, d.Metrics)
	checkoutService := checkout.NewCheckoutService(d.Inventory, d.Drafts, d.Gateway, d.Log)

	return api.NewRouter(api.Handlers{
		Webhook:  api.NewWebhookHandler(d.Gateway, d.Reconciler, d.EventLog, d.Log, d.Metrics),
		Status:   api.NewStatusHandler(d.Verifier, d.Log),
		Hold:     api.NewHoldHandler(holdService, d.Log),
		Checkout: api.NewCheckoutHandler(checkoutService, d.Log),
	}, d.Registry, d.Log)
}

func (d *Deps) Sweeper() *fulfillment.Sweeper {
	cfg := d.Config.Fulfillment
	return fulfillment.NewSweeper(d.Store, d.Reconciler, d.Cache, fulfillment.SweepConfig{
		MinAge:  cfg.SweepMinAge,
		Batch:   cfg.SweepBatch,
		LockTTL: cfg.SweepLockTTL,
	}, d.Log, d.Metrics)
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Log.Warn("failed to close dependency", "error", err)
		}
	}
	d.closers = nil
}
