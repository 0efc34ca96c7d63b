package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Database    DatabaseConfig    `yaml:"database"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Store       StoreConfig       `yaml:"store"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Payment     PaymentConfig     `yaml:"payment"`
	Inventory   InventoryConfig   `yaml:"inventory"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
	Email       EmailConfig       `yaml:"email"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// StoreConfig selects the backend for booking records. Checkout drafts and the
// webhook event log always live in Postgres.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type PaymentConfig struct {
	BaseURL            string        `yaml:"base_url"`
	APIKey             string        `yaml:"api_key"`
	WebhookSecret      string        `yaml:"webhook_secret"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	SuccessURL         string        `yaml:"success_url"`
	CancelURL          string        `yaml:"cancel_url"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

type InventoryConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	APIVersion     string        `yaml:"api_version"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type FulfillmentConfig struct {
	OrderTimeout           time.Duration `yaml:"order_timeout"`
	FallbackGracePeriod    time.Duration `yaml:"fallback_grace_period"`
	StatusCacheTTL         time.Duration `yaml:"status_cache_ttl"`
	ConflictRereadAttempts int           `yaml:"conflict_reread_attempts"`
	ConflictRereadDelay    time.Duration `yaml:"conflict_reread_delay"`
	SweepInterval          time.Duration `yaml:"sweep_interval"`
	SweepMinAge            time.Duration `yaml:"sweep_min_age"`
	SweepBatch             int           `yaml:"sweep_batch"`
	SweepLockTTL           time.Duration `yaml:"sweep_lock_ttl"`
}

type EmailConfig struct {
	SMTPAddr string `yaml:"smtp_addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// .env is optional; secrets are usually injected by the environment.
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Payment.WebhookSecret, "PAYMENT_WEBHOOK_SECRET")
	overrideString(&c.Payment.APIKey, "PAYMENT_API_KEY")
	overrideString(&c.Inventory.Token, "INVENTORY_API_TOKEN")
	overrideString(&c.Database.Password, "DATABASE_PASSWORD")
	overrideString(&c.Email.Password, "SMTP_PASSWORD")
}

func (c *Config) applyDefaults() {
	defaultString(&c.HTTP.Address, ":8080")
	defaultDuration(&c.HTTP.ReadTimeout, 15*time.Second)
	defaultDuration(&c.HTTP.WriteTimeout, 30*time.Second)
	defaultString(&c.GRPC.Address, ":9090")
	defaultString(&c.Store.Driver, StoreDriverPostgres)
	defaultString(&c.Kafka.BookingEventsTopic, "booking-events")
	defaultString(&c.Kafka.GroupID, "booking-notifications")
	defaultDuration(&c.Payment.SignatureTolerance, 5*time.Minute)
	defaultDuration(&c.Payment.RequestTimeout, 10*time.Second)
	defaultString(&c.Inventory.APIVersion, "v2")
	defaultDuration(&c.Inventory.RequestTimeout, 15*time.Second)
	defaultDuration(&c.Fulfillment.OrderTimeout, 8*time.Second)
	defaultDuration(&c.Fulfillment.FallbackGracePeriod, 10*time.Second)
	defaultDuration(&c.Fulfillment.StatusCacheTTL, 24*time.Hour)
	defaultDuration(&c.Fulfillment.ConflictRereadDelay, 250*time.Millisecond)
	defaultDuration(&c.Fulfillment.SweepInterval, time.Minute)
	defaultDuration(&c.Fulfillment.SweepMinAge, 2*time.Minute)
	defaultDuration(&c.Fulfillment.SweepLockTTL, 30*time.Second)
	defaultString(&c.Metrics.Namespace, "booking_fulfillment")
	if c.Fulfillment.ConflictRereadAttempts <= 0 {
		c.Fulfillment.ConflictRereadAttempts = 5
	}
	if c.Fulfillment.SweepBatch <= 0 {
		c.Fulfillment.SweepBatch = 50
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func defaultString(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func defaultDuration(dst *time.Duration, value time.Duration) {
	if *dst == 0 {
		*dst = value
	}
}
