package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/payment"
	"github.com/Domenick1991/bookingfulfillment/internal/service/fulfillment"
	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	verifier fulfillment.VerifyUseCase
	log      logger.Logger
}

func NewStatusHandler(verifier fulfillment.VerifyUseCase, log logger.Logger) *StatusHandler {
	return &StatusHandler{verifier: verifier, log: log}
}

func (h *StatusHandler) Register(router *gin.RouterGroup) {
	router.GET("/booking-status", h.get)
}

func (h *StatusHandler) get(c *gin.Context) {
	sessionKey := c.Query("session_key")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_key is required"})
		return
	}

	outcome, err := h.verifier.Verify(c.Request.Context(), sessionKey)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		h.log.Error("booking status lookup failed", "session_key", sessionKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}
