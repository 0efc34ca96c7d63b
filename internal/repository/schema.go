package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS booking_records (
	session_key       TEXT PRIMARY KEY,
	state             TEXT NOT NULL CHECK (state IN ('processing', 'confirmed', 'failed')),
	customer_email    TEXT NOT NULL DEFAULT '',
	amount_total      BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	passenger_data    JSONB NOT NULL,
	offer_id          TEXT NOT NULL DEFAULT '',
	booking_reference TEXT NOT NULL DEFAULT '',
	order_id          TEXT NOT NULL DEFAULT '',
	failure_reason    TEXT NOT NULL DEFAULT '',
	error_detail      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((state = 'confirmed') = (order_id <> '' AND booking_reference <> ''))
);

CREATE INDEX IF NOT EXISTS booking_records_processing_idx
	ON booking_records (created_at) WHERE state = 'processing';

CREATE TABLE IF NOT EXISTS checkout_drafts (
	id             TEXT PRIMARY KEY,
	offer_id       TEXT NOT NULL,
	passenger_data JSONB NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	amount_total   BIGINT NOT NULL,
	currency       TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the booking tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
