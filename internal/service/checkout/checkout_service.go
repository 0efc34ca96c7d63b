package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid checkout request")

type CheckoutUseCase interface {
	StartCheckout(ctx context.Context, input StartCheckoutInput) (*domain.CheckoutSession, error)
}

type OfferFetcher interface {
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error)
}

type StartCheckoutInput struct {
	OfferID       string
	Passengers    []domain.Passenger
	Services      []domain.SelectedService
	CustomerEmail string
}

// CheckoutService opens a pay-now payment session. The order payload is kept as
// a draft in the store and the session only references it.
type CheckoutService struct {
	offers   OfferFetcher
	drafts   repository.DraftRepository
	sessions SessionCreator
	log      logger.Logger
	now      func() time.Time
}

func NewCheckoutService(offers OfferFetcher, drafts repository.DraftRepository, sessions SessionCreator, log logger.Logger) *CheckoutService {
	return &CheckoutService{
		offers:   offers,
		drafts:   drafts,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

func (s *CheckoutService) StartCheckout(ctx context.Context, input StartCheckoutInput) (*domain.CheckoutSession, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	offer, err := s.offers.GetOffer(ctx, input.OfferID)
	if err != nil {
		return nil, fmt.Errorf("fetch offer: %w", err)
	}
	if !offer.Bookable(s.now()) {
		return nil, fmt.Errorf("%w: offer %s expired", domain.ErrOfferNotFound, offer.ID)
	}

	passengers, err := domain.AssignPassengerIDs(input.Passengers, offer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	amount, err := priceServices(offer, input.Services)
	if err != nil {
		return nil, err
	}

	draft := &domain.CheckoutDraft{
		ID:      uuid.NewString(),
		OfferID: offer.ID,
		PassengerData: domain.PassengerData{
			Passengers:    passengers,
			Services:      input.Services,
			OfferAmount:   offer.TotalAmount,
			OfferCurrency: offer.Currency,
		},
		CustomerEmail: input.CustomerEmail,
		AmountTotal:   offer.TotalAmount + amount,
		Currency:      offer.Currency,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("save checkout draft: %w", err)
	}

	session, err := s.sessions.CreateSession(ctx, domain.SessionRequest{
		AmountTotal:   draft.AmountTotal,
		Currency:      draft.Currency,
		CustomerEmail: draft.CustomerEmail,
		Description:   "Flight booking " + offer.ID,
		Metadata: map[string]string{
			domain.MetaDraftID: draft.ID,
			domain.MetaOfferID: offer.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open payment session: %w", err)
	}

	s.log.Info("checkout started", "session_key", session.Key, "draft_id", draft.ID, "offer_id", offer.ID, "amount", draft.AmountTotal)
	return &domain.CheckoutSession{
		SessionKey:  session.Key,
		CheckoutURL: session.URL,
		DraftID:     draft.ID,
		AmountTotal: draft.AmountTotal,
		Currency:    draft.Currency,
	}, nil
}

// priceServices returns the total for the selected services, priced from the offer.
func priceServices(offer *domain.Offer, selected []domain.SelectedService) (int64, error) {
	var total int64
	for _, sel := range selected {
		svc, ok := offer.Service(sel.ID)
		if !ok {
			return 0, fmt.Errorf("%w: service %s is not available on offer %s", ErrInvalidRequest, sel.ID, offer.ID)
		}
		if svc.Currency != "" && !strings.EqualFold(svc.Currency, offer.Currency) {
			return 0, fmt.Errorf("%w: service %s is priced in %s", ErrInvalidRequest, sel.ID, svc.Currency)
		}
		total += svc.TotalAmount * int64(sel.Quantity)
	}
	return total, nil
}

func validate(input StartCheckoutInput) error {
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

var _ CheckoutUseCase = (*CheckoutService)(nil)
