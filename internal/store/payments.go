package store

import (
	"context"
	"fmt"

	"ticket-checkout/internal/status"
	"ticket-checkout/models"

	"github.com/pocketbase/dbx"
)

const paymentColumns = `id, reference, user_id, amount, currency, status, transaction_id, refund_id,
	card_brand, card_last_four, ticket_id, error_message, created_at, completed_at`

// CreatePayment inserts p and sets its ID.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	err := s.db.NewQuery(`INSERT INTO payments
		(reference, user_id, amount, currency, status, error_message, created_at)
		VALUES ({:reference}, {:user_id}, {:amount}, {:currency}, {:status}, {:error_message}, {:created_at})
		RETURNING id`).
		Bind(dbx.Params{
			"reference":     p.Reference,
			"user_id":       p.UserID,
			"amount":        p.Amount.StringFixed(2),
			"currency":      p.Currency,
			"status":        string(p.Status),
			"error_message": nullable(p.ErrorMessage),
			"created_at":    p.CreatedAt.UTC(),
		}).
		WithContext(ctx).
		Row(&p.ID)
	if err != nil {
		return fmt.Errorf("store: create payment %s: %w", p.Reference, err)
	}
	return nil
}

// SavePayment writes every mutable column of p.
func (s *Store) SavePayment(ctx context.Context, p *models.Payment) error {
	return savePayment(ctx, s.db, p)
}

func savePayment(ctx context.Context, b dbx.Builder, p *models.Payment) error {
	res, err := b.NewQuery(`UPDATE payments SET
		status = {:status}, transaction_id = {:transaction_id}, refund_id = {:refund_id},
		card_brand = {:card_brand}, card_last_four = {:card_last_four}, ticket_id = {:ticket_id},
		error_message = {:error_message}, completed_at = {:completed_at}
		WHERE id = {:id}`).
		Bind(dbx.Params{
			"id":             p.ID,
			"status":         string(p.Status),
			"transaction_id": nullable(p.TransactionID),
			"refund_id":      nullable(p.RefundID),
			"card_brand":     nullable(p.CardBrand),
			"card_last_four": nullable(p.CardLastFour),
			"ticket_id":      nullable(p.TicketID),
			"error_message":  nullable(p.ErrorMessage),
			"completed_at":   nullableTime(p.CompletedAt),
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("store: save payment %s: %w", p.Reference, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: save payment %s: %w", p.Reference, status.ErrPaymentNotFound)
	}
	return nil
}

func (s *Store) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.NewQuery("SELECT " + paymentColumns + " FROM payments WHERE reference = {:reference}").
		Bind(dbx.Params{"reference": reference}).
		WithContext(ctx).
		One(&p)
	if isNoRows(err) {
		return nil, status.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find payment %s: %w", reference, err)
	}
	return &p, nil
}
