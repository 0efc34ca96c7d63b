package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/jackc/pgx/v5"
)

type DraftRepository interface {
	Create(ctx context.Context, draft *domain.CheckoutDraft) error
	Get(ctx context.Context, id string) (*domain.CheckoutDraft, error)
}

type PGDraftRepository struct {
	db DBTX
}

func NewDraftRepository(db DBTX) DraftRepository {
	return &PGDraftRepository{db: db}
}

func (r *PGDraftRepository) Create(ctx context.Context, draft *domain.CheckoutDraft) error {
	payload, err := json.Marshal(draft.PassengerData)
	if err != nil {
		return fmt.Errorf("encode passenger data: %w", err)
	}
	return r.db.QueryRow(ctx, `INSERT INTO checkout_drafts (id, offer_id, passenger_data, customer_email, amount_total, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`, draft.ID, draft.OfferID, payload, draft.CustomerEmail, draft.AmountTotal, draft.Currency).
		Scan(&draft.CreatedAt)
}

func (r *PGDraftRepository) Get(ctx context.Context, id string) (*domain.CheckoutDraft, error) {
	row := r.db.QueryRow(ctx, `SELECT id, offer_id, passenger_data, customer_email, amount_total, currency, created_at
		FROM checkout_drafts WHERE id=$1`, id)

	var (
		d       domain.CheckoutDraft
		payload []byte
	)
	if err := row.Scan(&d.ID, &d.OfferID, &payload, &d.CustomerEmail, &d.AmountTotal, &d.Currency, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &d.PassengerData); err != nil {
		return nil, fmt.Errorf("decode passenger data: %w", err)
	}
	return &d, nil
}

var _ DraftRepository = (*PGDraftRepository)(nil)
