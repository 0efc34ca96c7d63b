package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/money"
)

const (
	orderTypeInstant = "instant"
	orderTypeHold    = "hold"
)

// Error codes the API returns when the offer was already turned into an order.
var conflictCodes = []string{"duplicate_order", "offer_already_booked", "order_already_exists"}

type orderPassenger struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Gender      string `json:"gender,omitempty"`
	BornOn      string `json:"born_on,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type orderService struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type orderPayment struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type createOrderRequest struct {
	Type           string           `json:"type"`
	SelectedOffers []string         `json:"selected_offers"`
	Passengers     []orderPassenger `json:"passengers"`
	Services       []orderService   `json:"services,omitempty"`
	Payments       []orderPayment   `json:"payments,omitempty"`
}

type orderResponse struct {
	Data struct {
		ID               string `json:"id"`
		BookingReference string `json:"booking_reference"`
		PaymentStatus    struct {
			PaymentRequiredBy string `json:"payment_required_by"`
		} `json:"payment_status"`
	} `json:"data"`
}

// CreateInstantOrder books and pays for the offer from the provider balance.
func (c *Client) CreateInstantOrder(ctx context.Context, req domain.InstantOrderRequest) (*domain.Order, error) {
	body := createOrderRequest{
		Type:           orderTypeInstant,
		SelectedOffers: []string{req.OfferID},
		Passengers:     toOrderPassengers(req.Passengers),
		Services:       toOrderServices(req.Services),
		Payments: []orderPayment{{
			Type:     "balance",
			Amount:   money.Format(req.Payment.Amount, req.Payment.Currency),
			Currency: req.Payment.Currency,
		}},
	}

	resp, err := c.createOrder(ctx, req.OfferID, body)
	if err != nil {
		return nil, err
	}
	return &domain.Order{ID: resp.Data.ID, BookingReference: resp.Data.BookingReference}, nil
}

// CreateHeldOrder reserves the offer without payment.
func (c *Client) CreateHeldOrder(ctx context.Context, req domain.HeldOrderRequest) (*domain.HoldOrder, error) {
	body := createOrderRequest{
		Type:           orderTypeHold,
		SelectedOffers: []string{req.OfferID},
		Passengers:     toOrderPassengers(req.Passengers),
		Services:       toOrderServices(req.Services),
	}

	resp, err := c.createOrder(ctx, req.OfferID, body)
	if err != nil {
		return nil, err
	}
	return &domain.HoldOrder{
		OrderID:          resp.Data.ID,
		BookingReference: resp.Data.BookingReference,
		ExpiresAt:        resp.Data.PaymentStatus.PaymentRequiredBy,
	}, nil
}

func (c *Client) createOrder(ctx context.Context, offerID string, body createOrderRequest) (*orderResponse, error) {
	var resp orderResponse
	status, apiErr, err := c.do(ctx, http.MethodPost, "/air/orders", map[string]interface{}{"data": body}, &resp)
	if err != nil {
		// The request may have reached the API; only a later read can tell.
		c.log.Warn("order request outcome unknown", "offer_id", offerID, "type", body.Type, "timeout", isTimeout(err), "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderOutcomeUnknown, err)
	}

	if apiErr != nil {
		first := apiErr.first()
		switch {
		case status == http.StatusConflict || apiErr.hasCode(conflictCodes...):
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderConflict, first.Message)
		case status >= 500:
			return nil, fmt.Errorf("%w: upstream status %d: %s", domain.ErrOrderOutcomeUnknown, status, first.Message)
		default:
			return nil, &domain.OrderError{Status: status, Code: first.Code, Title: first.Title, Message: first.Message}
		}
	}
	return &resp, nil
}

func toOrderPassengers(passengers []domain.Passenger) []orderPassenger {
	out := make([]orderPassenger, 0, len(passengers))
	for _, p := range passengers {
		out = append(out, orderPassenger{
			ID:          p.ID,
			Type:        p.Type,
			Title:       p.Title,
			GivenName:   p.GivenName,
			FamilyName:  p.FamilyName,
			Gender:      p.Gender,
			BornOn:      p.BornOn,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
		})
	}
	return out
}

func toOrderServices(services []domain.SelectedService) []orderService {
	if len(services) == 0 {
		return nil
	}
	out := make([]orderService, 0, len(services))
	for _, s := range services {
		out = append(out, orderService{ID: s.ID, Quantity: s.Quantity})
	}
	return out
}

type orderListResponse struct {
	Data []struct {
		ID               string `json:"id"`
		BookingReference string `json:"booking_reference"`
		Type             string `json:"type"`
	} `json:"data"`
}

// FindOrderForOffer returns the instant order already created from offerID, or
// nil when there is none.
func (c *Client) FindOrderForOffer(ctx context.Context, offerID string) (*domain.Order, error) {
	var resp orderListResponse
	status, apiErr, err := c.do(ctx, http.MethodGet, "/air/orders?offer_id="+url.QueryEscape(offerID), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if apiErr != nil {
		return nil, fmt.Errorf("list orders: status %d: %s", status, apiErr.first().Message)
	}
	for _, o := range resp.Data {
		if o.Type == "" || o.Type == orderTypeInstant {
			return &domain.Order{ID: o.ID, BookingReference: o.BookingReference}, nil
		}
	}
	return nil, nil
}
