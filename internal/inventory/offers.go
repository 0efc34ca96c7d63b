package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/money"
)

type offerPayload struct {
	ID            string `json:"id"`
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	ExpiresAt     string `json:"expires_at"`
	Passengers    []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"passengers"`
	AvailableServices []struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		TotalAmount   string `json:"total_amount"`
		TotalCurrency string `json:"total_currency"`
	} `json:"available_services"`
	PaymentRequirements domain.PaymentRequirements `json:"payment_requirements"`
}

// GetOffer re-fetches the offer so callers see its current price and validity.
func (c *Client) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	var resp struct {
		Data offerPayload `json:"data"`
	}
	path := "/air/offers/" + url.PathEscape(offerID) + "?return_available_services=true"

	status, apiErr, err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("get offer %s: %w", offerID, err)
	}
	if apiErr != nil {
		if status == http.StatusNotFound || status == http.StatusGone ||
			apiErr.hasCode("offer_no_longer_available", "offer_expired", "not_found") {
			return nil, domain.ErrOfferNotFound
		}
		first := apiErr.first()
		return nil, fmt.Errorf("get offer %s: status %d: %s", offerID, status, first.Message)
	}

	return toOffer(resp.Data)
}

func toOffer(p offerPayload) (*domain.Offer, error) {
	total, err := money.Parse(p.TotalAmount, p.TotalCurrency)
	if err != nil {
		return nil, fmt.Errorf("offer %s total: %w", p.ID, err)
	}

	offer := &domain.Offer{
		ID:                  p.ID,
		TotalAmount:         total,
		Currency:            strings.ToUpper(p.TotalCurrency),
		PaymentRequirements: p.PaymentRequirements,
	}
	if p.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, p.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("offer %s expires_at: %w", p.ID, err)
		}
		offer.ExpiresAt = expires
	}
	for _, pas := range p.Passengers {
		offer.Passengers = append(offer.Passengers, domain.OfferPassenger{ID: pas.ID, Type: pas.Type})
	}
	for _, svc := range p.AvailableServices {
		code := svc.TotalCurrency
		if code == "" {
			code = p.TotalCurrency
		}
		amount, err := money.Parse(svc.TotalAmount, code)
		if err != nil {
			return nil, fmt.Errorf("service %s total: %w", svc.ID, err)
		}
		offer.Services = append(offer.Services, domain.OfferService{
			ID:          svc.ID,
			Type:        svc.Type,
			TotalAmount: amount,
			Currency:    strings.ToUpper(svc.TotalCurrency),
		})
	}
	return offer, nil
}
