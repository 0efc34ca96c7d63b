package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/service/checkout"
	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	service checkout.CheckoutUseCase
	log     logger.Logger
}

type checkoutRequest struct {
	OfferID       string             `json:"offerId"`
	Passengers    []passengerRequest `json:"passengers"`
	Services      []serviceRequest   `json:"services"`
	CustomerEmail string             `json:"customerEmail"`
}

func NewCheckoutHandler(service checkout.CheckoutUseCase, log logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, log: log}
}

func (h *CheckoutHandler) Register(router *gin.RouterGroup) {
	router.POST("/checkout", h.create)
}

func (h *CheckoutHandler) create(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.StartCheckout(c.Request.Context(), checkout.StartCheckoutInput{
		OfferID:       req.OfferID,
		Passengers:    toPassengers(req.Passengers),
		Services:      toServices(req.Services),
		CustomerEmail: req.CustomerEmail,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, session)
	case errors.Is(err, checkout.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOfferNotFound):
		c.JSON(http.StatusConflict, gin.H{
			"status":      domain.OutcomeFailed,
			"reason":      domain.ReasonOfferUnavailable,
			"errorDetail": domain.FailureMessage(domain.ReasonOfferUnavailable),
		})
	default:
		h.log.Error("checkout failed", "offer_id", req.OfferID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
