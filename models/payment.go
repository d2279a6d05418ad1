package models

import (
	"time"

	"ticket-checkout/internal/status"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	ID            int64           `db:"id" json:"-"`
	Reference     string          `db:"reference" json:"payment_reference"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Status        PaymentStatus   `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	RefundID      *string         `db:"refund_id" json:"refund_id,omitempty"`
	CardBrand     *string         `db:"card_brand" json:"card_brand,omitempty"`
	CardLastFour  *string         `db:"card_last_four" json:"card_last_four,omitempty"`
	TicketID      *int64          `db:"ticket_id" json:"-"`
	ErrorMessage  *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// Complete moves a pending payment to COMPLETED.
func (p *Payment) Complete(transactionID, brand, lastFour string, ticketID int64, at time.Time) error {
	if p.Status != PaymentPending {
		return status.ErrInvalidTransition
	}
	p.Status = PaymentCompleted
	p.TransactionID = &transactionID
	p.CardBrand = &brand
	p.CardLastFour = &lastFour
	p.TicketID = &ticketID
	p.ErrorMessage = nil
	p.CompletedAt = &at
	return nil
}

// Fail moves a pending payment to FAILED. transactionID is empty when no
// money moved.
func (p *Payment) Fail(transactionID, message string, at time.Time) error {
	if p.Status != PaymentPending {
		return status.ErrInvalidTransition
	}
	p.Status = PaymentFailed
	if transactionID != "" {
		p.TransactionID = &transactionID
	}
	p.ErrorMessage = &message
	p.CompletedAt = &at
	return nil
}

// AppendError adds a note to the error message without touching the status.
func (p *Payment) AppendError(note string) {
	if p.ErrorMessage == nil || *p.ErrorMessage == "" {
		p.ErrorMessage = &note
		return
	}
	msg := *p.ErrorMessage + "; " + note
	p.ErrorMessage = &msg
}
