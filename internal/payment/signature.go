package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" for every webhook delivery.
const SignatureHeader = "Stripe-Signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Sign produces a signature header for payload. Used by tests and local tooling.
func Sign(secret string, payload []byte, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

// VerifySignature authenticates body against header and decodes the event.
func (g *Gateway) VerifySignature(body []byte, header string) (*domain.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(body, header, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	var sessionKey string
	if event.Data != nil {
		sessionKey, _ = event.Data.Object["id"].(string)
	}
	return &domain.PaymentEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		Created:    time.Unix(event.Created, 0).UTC(),
		SessionKey: sessionKey,
		Payload:    json.RawMessage(body),
	}, nil
}
