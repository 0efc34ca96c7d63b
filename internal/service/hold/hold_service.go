package hold

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
)

var (
	ErrInstantPaymentRequired = errors.New("offer requires instant payment")
	ErrInvalidRequest         = errors.New("invalid hold request")
)

type HoldUseCase interface {
	CreateHold(ctx context.Context, input CreateHoldInput) (*domain.HoldOrder, error)
}

type OfferFetcher interface {
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
}

type OrderCreator interface {
	CreateHeldOrder(ctx context.Context, req domain.HeldOrderRequest) (*domain.HoldOrder, error)
}

type CreateHoldInput struct {
	OfferID    string
	Passengers []domain.Passenger
	Services   []domain.SelectedService
}

// HoldService reserves an offer without taking payment. Holds are not recorded
// locally; the inventory system owns them until they expire or are paid.
type HoldService struct {
	offers  OfferFetcher
	orders  OrderCreator
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewHoldService(offers OfferFetcher, orders OrderCreator, log logger.Logger, m *metrics.Metrics) *HoldService {
	return &HoldService{
		offers:  offers,
		orders:  orders,
		log:     log,
		metrics: m,
	}
}

func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (*domain.HoldOrder, error) {
	if err := validate(input); err != nil {
		s.metrics.ObserveHold("invalid")
		return nil, err
	}
	log := s.log.With("offer_id", input.OfferID)

	offer, err := s.offers.GetOffer(ctx, input.OfferID)
	if err != nil {
		s.metrics.ObserveHold("offer_error")
		return nil, fmt.Errorf("fetch offer: %w", err)
	}
	if offer.PaymentRequirements.RequiresInstantPayment {
		s.metrics.ObserveHold("instant_payment_required")
		log.Info("hold refused, offer requires instant payment")
		return nil, ErrInstantPaymentRequired
	}

	passengers, err := domain.AssignPassengerIDs(input.Passengers, offer)
	if err != nil {
		s.metrics.ObserveHold("invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	held, err := s.orders.CreateHeldOrder(ctx, domain.HeldOrderRequest{
		OfferID:    input.OfferID,
		Passengers: passengers,
		Services:   input.Services,
	})
	if err != nil {
		s.metrics.ObserveHold("order_error")
		return nil, err
	}

	s.metrics.ObserveHold("held")
	log.Info("hold order created", "order_id", held.OrderID, "expires_at", held.ExpiresAt)
	return held, nil
}

func validate(input CreateHoldInput) error {
	if strings.TrimSpace(input.OfferID) == "" {
		return fmt.Errorf("%w: offerId is required", ErrInvalidRequest)
	}
	if len(input.Passengers) == 0 {
		return fmt.Errorf("%w: at least one passenger is required", ErrInvalidRequest)
	}
	for i, p := range input.Passengers {
		if strings.TrimSpace(p.GivenName) == "" || strings.TrimSpace(p.FamilyName) == "" {
			return fmt.Errorf("%w: passenger %d needs a given and family name", ErrInvalidRequest, i+1)
		}
	}
	for _, svc := range input.Services {
		if svc.ID == "" || svc.Quantity < 1 {
			return fmt.Errorf("%w: services need an id and a positive quantity", ErrInvalidRequest)
		}
	}
	return nil
}

var _ HoldUseCase = (*HoldService)(nil)
