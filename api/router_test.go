package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("booking_fulfillment", reg)
	m.ObserveWebhook("processed")

	router := NewRouter(Handlers{
		Status: NewStatusHandler(&MockVerifier{}, logger.NewNop()),
		Hold:   NewHoldHandler(&MockHoldUseCase{}, logger.NewNop()),
	}, reg, logger.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `booking_fulfillment_webhook_events_total{result="processed"} 1`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/booking-status", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no checkout handler configured
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
