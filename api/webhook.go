package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/Domenick1991/bookingfulfillment/internal/payment"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
	"github.com/Domenick1991/bookingfulfillment/internal/service/fulfillment"
	"github.com/gin-gonic/gin"
)

const (
	webhookProvider = "payment"
	maxWebhookBody  = 1 << 20
)

type SignatureVerifier interface {
	VerifySignature(body []byte, header string) (*domain.PaymentEvent, error)
}

// WebhookHandler accepts provider deliveries. Anything past authentication is
// answered with 200 so the provider does not retry business outcomes.
type WebhookHandler struct {
	verifier   SignatureVerifier
	reconciler fulfillment.ReconcileUseCase
	events     repository.WebhookEventLog
	log        logger.Logger
	metrics    *metrics.Metrics
}

func NewWebhookHandler(verifier SignatureVerifier, reconciler fulfillment.ReconcileUseCase, events repository.WebhookEventLog, log logger.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		events:     events,
		log:        log,
		metrics:    m,
	}
}

func (h *WebhookHandler) Register(router *gin.RouterGroup) {
	router.POST("/webhook", h.receive)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.metrics.ObserveWebhook("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := h.verifier.VerifySignature(body, c.GetHeader(payment.SignatureHeader))
	if err != nil {
		h.metrics.ObserveWebhook("rejected")
		h.log.Warn("webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	// The provider may hang up; reconciliation must still run to completion.
	ctx := context.WithoutCancel(c.Request.Context())
	h.record(ctx, event, body)
	h.markProcessed(ctx, event, h.dispatch(ctx, event))

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) dispatch(ctx context.Context, event *domain.PaymentEvent) (processingErr string) {
	log := h.log.With("event_id", event.ID, "event_type", event.Type, "session_key", event.SessionKey)

	if !payment.IsPaymentCompletedEvent(event.Type) {
		h.metrics.ObserveWebhook("ignored")
		return ""
	}
	if event.SessionKey == "" {
		h.metrics.ObserveWebhook("ignored")
		log.Warn("payment event without session")
		return "event carries no session"
	}

	defer func() {
		if r := recover(); r != nil {
			h.metrics.ObserveWebhook("error")
			log.Error("reconciliation panicked", "panic", r)
			processingErr = fmt.Sprintf("panic: %v", r)
		}
	}()

	outcome, err := h.reconciler.Reconcile(ctx, event.SessionKey)
	if err != nil {
		h.metrics.ObserveWebhook("error")
		log.Error("reconciliation failed", "error", err)
		return err.Error()
	}

	h.metrics.ObserveWebhook("processed")
	log.Info("payment event reconciled", "outcome", outcome.Status, "order_id", outcome.OrderID, "reason", outcome.Reason)
	return ""
}

func (h *WebhookHandler) record(ctx context.Context, event *domain.PaymentEvent, body []byte) {
	if h.events == nil {
		return
	}
	err := h.events.Record(ctx, &repository.WebhookEvent{
		Provider:        webhookProvider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		SessionKey:      event.SessionKey,
		PayloadJSON:     string(body),
		SignatureValid:  true,
		Deliveries:      1,
	})
	if err != nil {
		h.log.Warn("failed to record webhook event", "event_id", event.ID, "error", err)
	}
}

func (h *WebhookHandler) markProcessed(ctx context.Context, event *domain.PaymentEvent, processingErr string) {
	if h.events == nil {
		return
	}
	if err := h.events.MarkProcessed(ctx, webhookProvider, event.ID, processingErr); err != nil {
		h.log.Warn("failed to mark webhook event processed", "event_id", event.ID, "error", err)
	}
}
