package domain

type OutcomeStatus string

const (
	OutcomePending    OutcomeStatus = "pending"
	OutcomeProcessing OutcomeStatus = "processing"
	OutcomeConfirmed  OutcomeStatus = "confirmed"
	OutcomeFailed     OutcomeStatus = "failed"
)

const (
	ReasonOfferUnavailable       = "offer_unavailable"
	ReasonPriceChanged           = "price_changed"
	ReasonOrderRejected          = "order_rejected"
	ReasonMissingPassengerData   = "missing_passenger_data"
	ReasonInstantPaymentRequired = "instant_payment_required"
)

var failureMessages = map[string]string{
	ReasonOfferUnavailable:       "The selected fare is no longer available.",
	ReasonPriceChanged:           "The fare price changed before the booking could be completed.",
	ReasonOrderRejected:          "The airline could not complete this booking.",
	ReasonMissingPassengerData:   "Passenger details for this booking could not be found.",
	ReasonInstantPaymentRequired: "This fare must be paid immediately and cannot be held.",
}

// FailureMessage is the customer-facing summary for a failure reason.
func FailureMessage(reason string) string {
	if msg, ok := failureMessages[reason]; ok {
		return msg
	}
	return "The booking could not be completed."
}

// Outcome is the result of a reconciliation or status read.
type Outcome struct {
	Status           OutcomeStatus `json:"status"`
	OrderID          string        `json:"orderId,omitempty"`
	BookingReference string        `json:"bookingReference,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	ErrorDetail      string        `json:"errorDetail,omitempty"`
}

func (o Outcome) IsTerminal() bool {
	return o.Status == OutcomeConfirmed || o.Status == OutcomeFailed
}

func PendingOutcome() Outcome {
	return Outcome{Status: OutcomePending}
}

func ConfirmedOutcome(orderID, bookingReference string) Outcome {
	return Outcome{Status: OutcomeConfirmed, OrderID: orderID, BookingReference: bookingReference}
}

func FailedOutcome(reason string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason, ErrorDetail: FailureMessage(reason)}
}

// OutcomeFromRecord maps a stored record to the outcome reported to callers.
func OutcomeFromRecord(r *BookingRecord) Outcome {
	switch r.State {
	case BookingStateConfirmed:
		return ConfirmedOutcome(r.OrderID, r.BookingReference)
	case BookingStateFailed:
		return FailedOutcome(r.FailureReason)
	default:
		return Outcome{Status: OutcomeProcessing}
	}
}
