package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOrderConflict is returned when the inventory API refuses an order because
	// the offer was already fulfilled by another attempt.
	ErrOrderConflict = errors.New("order already exists for offer")
	// ErrOrderOutcomeUnknown covers timeouts and upstream failures where the order
	// may or may not have been created.
	ErrOrderOutcomeUnknown = errors.New("order outcome unknown")
	ErrPassengerMismatch   = errors.New("passenger count does not match offer")
)

type PaymentRequirements struct {
	RequiresInstantPayment  bool       `json:"requires_instant_payment"`
	PaymentRequiredBy       *time.Time `json:"payment_required_by,omitempty"`
	PriceGuaranteeExpiresAt *time.Time `json:"price_guarantee_expires_at,omitempty"`
}

type OfferPassenger struct {
	ID   string
	Type string
}

type OfferService struct {
	ID          string
	Type        string
	TotalAmount int64
	Currency    string
}

type Offer struct {
	ID                  string
	TotalAmount         int64
	Currency            string
	ExpiresAt           time.Time
	Passengers          []OfferPassenger
	Services            []OfferService
	PaymentRequirements PaymentRequirements
}

// Bookable reports whether the offer can still be ordered at now.
func (o *Offer) Bookable(now time.Time) bool {
	return o.ExpiresAt.IsZero() || now.Before(o.ExpiresAt)
}

func (o *Offer) Service(id string) (OfferService, bool) {
	for _, s := range o.Services {
		if s.ID == id {
			return s, true
		}
	}
	return OfferService{}, false
}

// AssignPassengerIDs fills missing passenger ids from the offer, positionally.
func AssignPassengerIDs(passengers []Passenger, offer *Offer) ([]Passenger, error) {
	if len(passengers) != len(offer.Passengers) {
		return nil, fmt.Errorf("%w: got %d, offer has %d", ErrPassengerMismatch, len(passengers), len(offer.Passengers))
	}
	out := make([]Passenger, len(passengers))
	for i, p := range passengers {
		if p.ID == "" {
			p.ID = offer.Passengers[i].ID
		}
		if p.Type == "" {
			p.Type = offer.Passengers[i].Type
		}
		out[i] = p
	}
	return out, nil
}

type OrderPayment struct {
	Amount   int64
	Currency string
}

type InstantOrderRequest struct {
	OfferID    string
	Passengers []Passenger
	Services   []SelectedService
	Payment    OrderPayment
}

type HeldOrderRequest struct {
	OfferID    string
	Passengers []Passenger
	Services   []SelectedService
}

type Order struct {
	ID               string
	BookingReference string
}

// HoldOrder is an unpaid, time-boxed reservation held by the inventory system.
// ExpiresAt is the provider's payment deadline, passed through verbatim.
type HoldOrder struct {
	OrderID          string `json:"orderId"`
	BookingReference string `json:"bookingReference"`
	ExpiresAt        string `json:"expiresAt"`
}

// OrderError is a definitive rejection from the inventory API.
type OrderError struct {
	Status  int
	Code    string
	Title   string
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("inventory order rejected (%d %s): %s: %s", e.Status, e.Code, e.Title, e.Message)
}

// Summary is safe to show to customers.
func (e *OrderError) Summary() string {
	if e.Title != "" {
		return e.Title
	}
	return "order rejected"
}
