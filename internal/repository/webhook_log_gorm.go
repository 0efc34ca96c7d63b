package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEvent is an audit row for one provider delivery. It is never consulted
// to decide whether to fulfill; the booking store is.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey"`
	Provider        string     `gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_webhook_events_provider_event,priority:1"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_webhook_events_provider_event,priority:2"`
	EventType       string     `gorm:"type:varchar(100);not null;index"`
	SessionKey      string     `gorm:"type:varchar(191);index"`
	PayloadJSON     string     `gorm:"type:text;not null"`
	SignatureValid  bool       `gorm:"not null;default:false"`
	Deliveries      int        `gorm:"not null;default:1"`
	ProcessedAt     *time.Time `gorm:"default:null"`
	ProcessingError string     `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}

type WebhookEventLog interface {
	Record(ctx context.Context, event *WebhookEvent) error
	MarkProcessed(ctx context.Context, provider, eventID, processingError string) error
}

type GormWebhookEventLog struct {
	db *gorm.DB
}

func NewWebhookEventLog(db *gorm.DB) *GormWebhookEventLog {
	return &GormWebhookEventLog{db: db}
}

func (l *GormWebhookEventLog) AutoMigrate() error {
	return l.db.AutoMigrate(&WebhookEvent{})
}

// Record inserts the delivery, or bumps the delivery counter for a redelivered event.
func (l *GormWebhookEventLog) Record(ctx context.Context, event *WebhookEvent) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"deliveries": gorm.Expr("payment_webhook_events.deliveries + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(event).Error
}

func (l *GormWebhookEventLog) MarkProcessed(ctx context.Context, provider, eventID, processingError string) error {
	now := time.Now()
	return l.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}

var _ WebhookEventLog = (*GormWebhookEventLog)(nil)
