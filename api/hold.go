package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/service/hold"
	"github.com/gin-gonic/gin"
)

const holdStatusHeld = "held"

type HoldHandler struct {
	service hold.HoldUseCase
	log     logger.Logger
}

type holdRequest struct {
	OfferID    string             `json:"offerId"`
	Passengers []passengerRequest `json:"passengers"`
	Services   []serviceRequest   `json:"services"`
}

type holdResponse struct {
	Status           string `json:"status"`
	OrderID          string `json:"orderId,omitempty"`
	BookingReference string `json:"bookingReference,omitempty"`
	ExpiresAt        string `json:"expiresAt,omitempty"`
	Reason           string `json:"reason,omitempty"`
	ErrorDetail      string `json:"errorDetail,omitempty"`
}

func NewHoldHandler(service hold.HoldUseCase, log logger.Logger) *HoldHandler {
	return &HoldHandler{service: service, log: log}
}

func (h *HoldHandler) Register(router *gin.RouterGroup) {
	router.POST("/hold-order", h.create)
}

func (h *HoldHandler) create(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	held, err := h.service.CreateHold(c.Request.Context(), hold.CreateHoldInput{
		OfferID:    req.OfferID,
		Passengers: toPassengers(req.Passengers),
		Services:   toServices(req.Services),
	})
	if err == nil {
		c.JSON(http.StatusOK, holdResponse{
			Status:           holdStatusHeld,
			OrderID:          held.OrderID,
			BookingReference: held.BookingReference,
			ExpiresAt:        held.ExpiresAt,
		})
		return
	}

	var orderErr *domain.OrderError
	switch {
	case errors.Is(err, hold.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, hold.ErrInstantPaymentRequired):
		c.JSON(http.StatusOK, failedHold(domain.ReasonInstantPaymentRequired, domain.FailureMessage(domain.ReasonInstantPaymentRequired)))
	case errors.Is(err, domain.ErrOfferNotFound), errors.Is(err, domain.ErrOrderConflict):
		c.JSON(http.StatusOK, failedHold(domain.ReasonOfferUnavailable, domain.FailureMessage(domain.ReasonOfferUnavailable)))
	case errors.As(err, &orderErr):
		h.log.Warn("hold order rejected", "offer_id", req.OfferID, "error", err)
		c.JSON(http.StatusOK, failedHold(domain.ReasonOrderRejected, orderErr.Summary()))
	default:
		h.log.Error("hold order failed", "offer_id", req.OfferID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func failedHold(reason, detail string) holdResponse {
	return holdResponse{Status: string(domain.OutcomeFailed), Reason: reason, ErrorDetail: detail}
}
