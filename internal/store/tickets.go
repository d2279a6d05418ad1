package store

import (
	"context"
	"fmt"
	"time"

	"ticket-checkout/internal/status"
	"ticket-checkout/models"

	"github.com/pocketbase/dbx"
)

const ticketColumns = `id, ticket_key, user_id, payment_id, event_name, ticket_type, price, quantity,
	status, issued_at, expires_at`

func (s *Store) FindTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	return findTicket(ctx, s.db, id, "")
}

func findTicket(ctx context.Context, b dbx.Builder, id int64, lockClause string) (*models.Ticket, error) {
	var t models.Ticket
	err := b.NewQuery("SELECT " + ticketColumns + " FROM tickets WHERE id = {:id}" + lockClause).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&t)
	if isNoRows(err) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find ticket %d: %w", id, err)
	}
	return &t, nil
}

// CreateTicket inserts t and sets its ID.
func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	return createTicket(ctx, s.db, t)
}

func createTicket(ctx context.Context, b dbx.Builder, t *models.Ticket) error {
	err := b.NewQuery(`INSERT INTO tickets
		(ticket_key, user_id, payment_id, event_name, ticket_type, price, quantity, status, issued_at, expires_at)
		VALUES ({:ticket_key}, {:user_id}, {:payment_id}, {:event_name}, {:ticket_type}, {:price}, {:quantity},
			{:status}, {:issued_at}, {:expires_at})
		RETURNING id`).
		Bind(dbx.Params{
			"ticket_key":  t.TicketKey,
			"user_id":     nullable(t.UserID),
			"payment_id":  nullable(t.PaymentID),
			"event_name":  t.EventName,
			"ticket_type": t.TicketType,
			"price":       t.Price.StringFixed(2),
			"quantity":    t.Quantity,
			"status":      string(t.Status),
			"issued_at":   t.IssuedAt.UTC(),
			"expires_at":  nullableTime(t.ExpiresAt),
		}).
		WithContext(ctx).
		Row(&t.ID)
	if err != nil {
		return fmt.Errorf("store: create ticket %s: %w", t.TicketKey, err)
	}
	return nil
}

func saveTicketQuantity(ctx context.Context, b dbx.Builder, t *models.Ticket) error {
	if t.Quantity < 0 {
		return fmt.Errorf("store: ticket %d: negative quantity %d", t.ID, t.Quantity)
	}
	res, err := b.NewQuery("UPDATE tickets SET quantity = {:quantity} WHERE id = {:id}").
		Bind(dbx.Params{"id": t.ID, "quantity": t.Quantity}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("store: save ticket %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: save ticket %d: %w", t.ID, status.ErrTicketNotFound)
	}
	return nil
}

// AvailableTickets lists active, unexpired tickets with stock left, newest
// first.
func (s *Store) AvailableTickets(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.NewQuery("SELECT " + ticketColumns + ` FROM tickets
		WHERE status = {:status} AND quantity > 0 AND (expires_at IS NULL OR expires_at > {:now})
		ORDER BY issued_at DESC, id DESC`).
		Bind(dbx.Params{"status": string(models.TicketActive), "now": now.UTC()}).
		WithContext(ctx).
		All(&tickets)
	if err != nil {
		return nil, fmt.Errorf("store: available tickets: %w", err)
	}
	return tickets, nil
}

// nullable unwraps p so drivers see a plain value or NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
