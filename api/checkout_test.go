package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/service/checkout"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const checkoutBody = `{"offerId":"off_1","customerEmail":"ada@example.com",
	"passengers":[{"givenName":"Ada","familyName":"Lovelace","bornOn":"1990-12-10"}],
	"services":[{"id":"ase_bag","quantity":2}]}`

func newCheckoutContext(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestCheckoutHandler_create(t *testing.T) {
	service := &MockCheckoutUseCase{}
	handler := NewCheckoutHandler(service, logger.NewNop())
	c, w := newCheckoutContext(checkoutBody)

	service.On("StartCheckout", c.Request.Context(), checkout.StartCheckoutInput{
		OfferID:       "off_1",
		Passengers:    []domain.Passenger{{GivenName: "Ada", FamilyName: "Lovelace", BornOn: "1990-12-10"}},
		Services:      []domain.SelectedService{{ID: "ase_bag", Quantity: 2}},
		CustomerEmail: "ada@example.com",
	}).Return(&domain.CheckoutSession{
		SessionKey:  "sess_1",
		CheckoutURL: "https://pay.example.com/c/sess_1",
		DraftID:     "5f1c7d0e-8a55-4f0e-9b9e-2d6f0c1a7b21",
		AmountTotal: 48050,
		Currency:    "GBP",
	}, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"sessionKey":"sess_1","checkoutUrl":"https://pay.example.com/c/sess_1",
		"draftId":"5f1c7d0e-8a55-4f0e-9b9e-2d6f0c1a7b21","amountTotal":48050,"currency":"GBP"}`, w.Body.String())
}

func TestCheckoutHandler_create_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "invalid", err: fmt.Errorf("%w: offerId is required", checkout.ErrInvalidRequest), wantCode: http.StatusBadRequest},
		{name: "offer gone", err: fmt.Errorf("fetch offer: %w", domain.ErrOfferNotFound), wantCode: http.StatusConflict},
		{name: "infrastructure", err: errors.New("save checkout draft: connection refused"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := &MockCheckoutUseCase{}
			handler := NewCheckoutHandler(service, logger.NewNop())
			c, w := newCheckoutContext(checkoutBody)
			service.On("StartCheckout", mock.Anything, mock.Anything).Return(nil, tc.err)

			handler.create(c)

			assert.Equal(t, tc.wantCode, w.Code)
		})
	}
}
