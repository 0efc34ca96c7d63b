package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// Event types that mean the customer's funds were collected.
const (
	EventCheckoutCompleted             = string(stripe.EventTypeCheckoutSessionCompleted)
	EventCheckoutAsyncPaymentSucceeded = string(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded)
)

var ErrSessionNotFound = errors.New("payment session not found")

// Gateway is the adapter for the payment provider's checkout sessions.
type Gateway struct {
	sessions      session.Client
	webhookSecret string
	tolerance     time.Duration
	successURL    string
	cancelURL     string
	log           logger.Logger
}

type gatewayOptions struct {
	httpClient *http.Client
	retries    int64
}

type GatewayOption func(*gatewayOptions)

func WithHTTPClient(c *http.Client) GatewayOption {
	return func(o *gatewayOptions) {
		o.httpClient = c
	}
}

// WithNetworkRetries sets how many times the SDK retries idempotent failures.
func WithNetworkRetries(n int64) GatewayOption {
	return func(o *gatewayOptions) {
		o.retries = n
	}
}

func NewGateway(cfg config.PaymentConfig, log logger.Logger, opts ...GatewayOption) *Gateway {
	o := gatewayOptions{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		retries:    2,
	}
	for _, opt := range opts {
		opt(&o)
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        o.httpClient,
		MaxNetworkRetries: stripe.Int64(o.retries),
		LeveledLogger:     sdkLogger{log: log},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}

	return &Gateway{
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.APIKey,
		},
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.SignatureTolerance,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		log:           log,
	}
}

// IsPaymentCompletedEvent reports whether the event type signals collected funds.
func IsPaymentCompletedEvent(eventType string) bool {
	return eventType == EventCheckoutCompleted || eventType == EventCheckoutAsyncPaymentSucceeded
}

func toDomainSession(s *stripe.CheckoutSession) *domain.PaymentSession {
	var email string
	if s.CustomerDetails != nil {
		email = s.CustomerDetails.Email
	}
	if email == "" {
		email = s.CustomerEmail
	}
	md := s.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return &domain.PaymentSession{
		Key:           s.ID,
		PaymentStatus: domain.PaymentStatus(s.PaymentStatus),
		Metadata:      md,
		CustomerEmail: email,
		AmountTotal:   s.AmountTotal,
		Currency:      strings.ToUpper(string(s.Currency)),
		URL:           s.URL,
		CreatedAt:     time.Unix(s.Created, 0).UTC(),
	}
}

func (g *Gateway) GetSession(ctx context.Context, sessionKey string) (*domain.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(sessionKey, params)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionKey, mapError(err))
	}
	return toDomainSession(s), nil
}

// UpdateSessionMetadata merges the marker into the session metadata.
func (g *Gateway) UpdateSessionMetadata(ctx context.Context, sessionKey string, marker domain.SessionMarker) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	for k, v := range marker.Metadata() {
		params.AddMetadata(k, v)
	}

	if _, err := g.sessions.Update(sessionKey, params); err != nil {
		return fmt.Errorf("update session %s metadata: %w", sessionKey, mapError(err))
	}
	return nil
}

// CreateSession opens a hosted checkout for a single line item covering the whole fare.
func (g *Gateway) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.AmountTotal),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", mapError(err))
	}
	return toDomainSession(s), nil
}

func mapError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return ErrSessionNotFound
		}
		return fmt.Errorf("payment provider status %d: %w", stripeErr.HTTPStatusCode, err)
	}
	return err
}

// sdkLogger routes SDK diagnostics into the service logger.
type sdkLogger struct {
	log logger.Logger
}

func (l sdkLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "payment_sdk")
}

func (l sdkLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "payment_sdk")
}

func (l sdkLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), "component", "payment_sdk")
}

func (l sdkLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "payment_sdk")
}
