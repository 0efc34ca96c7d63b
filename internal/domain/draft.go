package domain

import (
	"errors"
	"time"
)

var ErrDraftNotFound = errors.New("checkout draft not found")

// CheckoutDraft holds the order payload for a pay-now checkout until the payment
// session referencing it is reconciled.
type CheckoutDraft struct {
	ID            string
	OfferID       string
	PassengerData PassengerData
	CustomerEmail string
	AmountTotal   int64
	Currency      string
	CreatedAt     time.Time
}

type CheckoutSession struct {
	SessionKey  string `json:"sessionKey"`
	CheckoutURL string `json:"checkoutUrl"`
	DraftID     string `json:"draftId"`
	AmountTotal int64  `json:"amountTotal"`
	Currency    string `json:"currency"`
}
