package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
)

// BookingStore is the single source of truth for booking lifecycle state.
type BookingStore interface {
	// InsertIfAbsent stores rec unless a record with the same session key exists,
	// and returns whichever record is stored. A duplicate insert is not an error.
	InsertIfAbsent(ctx context.Context, rec *domain.BookingRecord) (*domain.BookingRecord, error)

	// CompareAndSetState moves a record from expected to next and writes fields in
	// the same statement. It reports false when the record was not in expected.
	CompareAndSetState(ctx context.Context, sessionKey string, expected, next domain.BookingState, fields domain.TerminalFields) (bool, error)

	// Get returns domain.ErrRecordNotFound when no record exists.
	Get(ctx context.Context, sessionKey string) (*domain.BookingRecord, error)

	// ListStaleProcessing returns processing records created at or before olderThan, oldest first.
	ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.BookingRecord, error)
}
