package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const bookingColumns = `session_key, state, customer_email, amount_total, currency, passenger_data, offer_id,
	booking_reference, order_id, failure_reason, error_detail, created_at, updated_at`

// DBTX is the part of *pgxpool.Pool the Postgres repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGBookingStore struct {
	db DBTX
}

func NewBookingStore(db DBTX) BookingStore {
	return &PGBookingStore{db: db}
}

func (r *PGBookingStore) InsertIfAbsent(ctx context.Context, rec *domain.BookingRecord) (*domain.BookingRecord, error) {
	payload, err := json.Marshal(rec.PassengerData)
	if err != nil {
		return nil, fmt.Errorf("encode passenger data: %w", err)
	}

	if _, err := r.db.Exec(ctx, `INSERT INTO booking_records
		(session_key, state, customer_email, amount_total, currency, passenger_data, offer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (session_key) DO NOTHING`,
		rec.SessionKey, domain.BookingStateProcessing, rec.CustomerEmail, rec.AmountTotal, rec.Currency, payload, rec.OfferID, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert booking record: %w", err)
	}

	return r.Get(ctx, rec.SessionKey)
}

func (r *PGBookingStore) CompareAndSetState(ctx context.Context, sessionKey string, expected, next domain.BookingState, fields domain.TerminalFields) (bool, error) {
	if err := domain.ValidateTransition(expected, next, fields); err != nil {
		return false, err
	}

	cmd, err := r.db.Exec(ctx, `UPDATE booking_records
		SET state=$3, order_id=$4, booking_reference=$5, failure_reason=$6, error_detail=$7, updated_at=now()
		WHERE session_key=$1 AND state=$2`,
		sessionKey, expected, next, fields.OrderID, fields.BookingReference, fields.FailureReason, fields.ErrorDetail)
	if err != nil {
		return false, fmt.Errorf("update booking state: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGBookingStore) Get(ctx context.Context, sessionKey string) (*domain.BookingRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM booking_records WHERE session_key=$1`, sessionKey)
	rec, err := scanBookingRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return rec, err
}

func (r *PGBookingStore) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.BookingRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM booking_records
		WHERE state=$1 AND created_at <= $2 ORDER BY created_at LIMIT $3`,
		domain.BookingStateProcessing, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []domain.BookingRecord
	for rows.Next() {
		rec, err := scanBookingRecord(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, *rec)
	}
	return stale, rows.Err()
}

func scanBookingRecord(row pgx.Row) (*domain.BookingRecord, error) {
	var (
		b       domain.BookingRecord
		payload []byte
	)
	if err := row.Scan(&b.SessionKey, &b.State, &b.CustomerEmail, &b.AmountTotal, &b.Currency, &payload, &b.OfferID,
		&b.BookingReference, &b.OrderID, &b.FailureReason, &b.ErrorDetail, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &b.PassengerData); err != nil {
			return nil, fmt.Errorf("decode passenger data: %w", err)
		}
	}
	return &b, nil
}

var _ BookingStore = (*PGBookingStore)(nil)
