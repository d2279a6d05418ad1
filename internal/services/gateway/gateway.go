// Package gateway defines the card payment gateway contract used by the
// checkout flow and the error taxonomy shared by its implementations.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Card is the card data forwarded for tokenization.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
	Name     string
}

type ChargeRequest struct {
	// AmountMinor is the amount in the currency's minor unit (cents).
	AmountMinor int64

	// Currency is the lower-case ISO-4217 code.
	Currency string

	Token       string
	Description string

	// IdempotencyKey makes a retried charge return the original result.
	IdempotencyKey string
}

// Gateway moves money. Only a nil error from Charge means funds were captured.
type Gateway interface {
	Tokenize(ctx context.Context, card Card) (string, error)
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, chargeID string) (string, error)
}

// ErrAlreadyRefunded is returned by Refund when the charge was refunded
// before. Callers treat it as a completed refund.
var ErrAlreadyRefunded = errors.New("gateway: charge already refunded")

// Error is a failure reported by the gateway or the transport to it.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string

	// DeclineCode narrows a card_declined Code, e.g. "insufficient_funds".
	DeclineCode string

	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("gateway: %s: %s (%s)", e.Op, e.Message, e.Code)
	case e.Message != "":
		return fmt.Sprintf("gateway: %s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway: %s: status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}
