package domain

import (
	"errors"
	"time"
)

type BookingState string

const (
	BookingStateProcessing BookingState = "processing"
	BookingStateConfirmed  BookingState = "confirmed"
	BookingStateFailed     BookingState = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s BookingState) IsTerminal() bool {
	return s == BookingStateConfirmed || s == BookingStateFailed
}

var (
	ErrRecordNotFound    = errors.New("booking record not found")
	ErrInvalidTransition = errors.New("invalid booking state transition")
)

type Passenger struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Gender      string `json:"gender,omitempty"`
	BornOn      string `json:"born_on,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type SelectedService struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// PassengerData is everything needed to build the order request, captured at checkout.
type PassengerData struct {
	Passengers    []Passenger       `json:"passengers"`
	Services      []SelectedService `json:"services,omitempty"`
	OfferAmount   int64             `json:"offer_amount"`
	OfferCurrency string            `json:"offer_currency"`
}

// BookingRecord is the durable lifecycle record of one paid checkout, keyed by the
// payment session.
type BookingRecord struct {
	SessionKey       string
	State            BookingState
	CustomerEmail    string
	AmountTotal      int64
	Currency         string
	PassengerData    PassengerData
	OfferID          string
	BookingReference string
	OrderID          string
	FailureReason    string
	ErrorDetail      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TerminalFields are written together with a terminal state.
type TerminalFields struct {
	OrderID          string
	BookingReference string
	FailureReason    string
	ErrorDetail      string
}

// ValidateTransition enforces processing -> confirmed|failed and that order
// identifiers are present exactly when the target state is confirmed.
func ValidateTransition(expected, next BookingState, fields TerminalFields) error {
	if expected != BookingStateProcessing || !next.IsTerminal() {
		return ErrInvalidTransition
	}
	hasOrder := fields.OrderID != "" && fields.BookingReference != ""
	switch next {
	case BookingStateConfirmed:
		if !hasOrder {
			return errors.New("confirmed booking requires order id and booking reference")
		}
	case BookingStateFailed:
		if fields.OrderID != "" || fields.BookingReference != "" {
			return errors.New("failed booking must not carry order identifiers")
		}
	}
	return nil
}
