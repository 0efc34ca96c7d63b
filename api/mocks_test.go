package api

import (
	"context"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/repository"
	"github.com/Domenick1991/bookingfulfillment/internal/service/checkout"
	"github.com/Domenick1991/bookingfulfillment/internal/service/hold"
	"github.com/stretchr/testify/mock"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	args := m.Called(ctx, sessionKey)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, sessionKey string) (domain.Outcome, error) {
	args := m.Called(ctx, sessionKey)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

type MockHoldUseCase struct {
	mock.Mock
}

func (m *MockHoldUseCase) CreateHold(ctx context.Context, input hold.CreateHoldInput) (*domain.HoldOrder, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HoldOrder), args.Error(1)
}

type MockCheckoutUseCase struct {
	mock.Mock
}

func (m *MockCheckoutUseCase) StartCheckout(ctx context.Context, input checkout.StartCheckoutInput) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

type MockWebhookEventLog struct {
	mock.Mock
}

func (m *MockWebhookEventLog) Record(ctx context.Context, event *repository.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventLog) MarkProcessed(ctx context.Context, provider, eventID, processingError string) error {
	args := m.Called(ctx, provider, eventID, processingError)
	return args.Error(0)
}
