package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "ACTIVE"
	TicketUsed      TicketStatus = "USED"
	TicketExpired   TicketStatus = "EXPIRED"
	TicketCancelled TicketStatus = "CANCELLED"
)

const DefaultTicketType = "GENERAL"

type Ticket struct {
	ID         int64           `db:"id" json:"id"`
	TicketKey  string          `db:"ticket_key" json:"ticket_key"`
	UserID     *int64          `db:"user_id" json:"user_id,omitempty"`
	PaymentID  *int64          `db:"payment_id" json:"-"`
	EventName  string          `db:"event_name" json:"event_name"`
	TicketType string          `db:"ticket_type" json:"ticket_type"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Status     TicketStatus    `db:"status" json:"status"`
	IssuedAt   time.Time       `db:"issued_at" json:"issued_at"`
	ExpiresAt  *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
}

func (t *Ticket) SoldOut() bool {
	return t.Quantity == 0
}

// Take removes n units from the pool and reports whether they were
// available. The quantity is unchanged when they were not.
func (t *Ticket) Take(n int) bool {
	if n <= 0 || n > t.Quantity {
		return false
	}
	t.Quantity -= n
	return true
}

func (t *Ticket) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Available reports whether the pool can still be sold from at now.
func (t *Ticket) Available(now time.Time) bool {
	return t.Status == TicketActive && !t.Expired(now)
}
