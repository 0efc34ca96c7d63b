package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Session metadata keys. The session only references the draft; the payload lives in the store.
const (
	MetaDraftID          = "draft_id"
	MetaOfferID          = "offer_id"
	MetaHoldOrderID      = "hold_order_id"
	MetaFulfillment      = "fulfillment_status"
	MetaOrderID          = "fulfillment_order_id"
	MetaBookingReference = "fulfillment_booking_reference"
	MetaFailureReason    = "fulfillment_reason"
	MetaErrorDetail      = "fulfillment_error"
)

type PaymentSession struct {
	Key           string
	PaymentStatus PaymentStatus
	Metadata      map[string]string
	CustomerEmail string
	AmountTotal   int64
	Currency      string
	URL           string
	CreatedAt     time.Time
}

func (s *PaymentSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// SessionRequest describes a payment session to open for a checkout.
type SessionRequest struct {
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	Description   string
	Metadata      map[string]string
}

// PaymentEvent is an authenticated webhook delivery.
type PaymentEvent struct {
	ID         string
	Type       string
	Created    time.Time
	SessionKey string
	Payload    json.RawMessage
}

// SessionMarker is the terminal outcome mirrored onto the payment session metadata.
type SessionMarker struct {
	Status           BookingState
	OrderID          string
	BookingReference string
	FailureReason    string
	ErrorDetail      string
}

// MarkerFromMetadata returns the terminal marker stored on a session, if any.
func MarkerFromMetadata(md map[string]string) (SessionMarker, bool) {
	status := BookingState(md[MetaFulfillment])
	if !status.IsTerminal() {
		return SessionMarker{}, false
	}
	return SessionMarker{
		Status:           status,
		OrderID:          md[MetaOrderID],
		BookingReference: md[MetaBookingReference],
		FailureReason:    md[MetaFailureReason],
		ErrorDetail:      md[MetaErrorDetail],
	}, true
}

func MarkerFromOutcome(o Outcome) SessionMarker {
	m := SessionMarker{
		OrderID:          o.OrderID,
		BookingReference: o.BookingReference,
		FailureReason:    o.Reason,
		ErrorDetail:      o.ErrorDetail,
	}
	if o.Status == OutcomeConfirmed {
		m.Status = BookingStateConfirmed
	} else {
		m.Status = BookingStateFailed
	}
	return m
}

func (m SessionMarker) Metadata() map[string]string {
	md := map[string]string{MetaFulfillment: string(m.Status)}
	if m.Status == BookingStateConfirmed {
		md[MetaOrderID] = m.OrderID
		md[MetaBookingReference] = m.BookingReference
	} else {
		md[MetaFailureReason] = m.FailureReason
		md[MetaErrorDetail] = m.ErrorDetail
	}
	return md
}

func (m SessionMarker) Outcome() Outcome {
	if m.Status == BookingStateConfirmed {
		return ConfirmedOutcome(m.OrderID, m.BookingReference)
	}
	return FailedOutcome(m.FailureReason)
}
