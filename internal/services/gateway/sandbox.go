package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local development. Outcomes follow
// the well-known test card numbers; any other number is charged.
type Sandbox struct {
	mu       sync.Mutex
	tokens   map[string]string
	charges  map[string]int64
	refunded map[string]string
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		tokens:   make(map[string]string),
		charges:  make(map[string]int64),
		refunded: make(map[string]string),
	}
}

var sandboxDeclines = map[string]*Error{
	"4000000000000002": {Code: "card_declined", Message: "Your card was declined."},
	"4000000000009995": {Code: "card_declined", Message: "Your card has insufficient funds. (insufficient_funds)"},
	"4000000000009987": {Code: "card_declined", Message: "Your card was reported lost. (lost_card)"},
	"4000000000009979": {Code: "card_declined", Message: "Your card was reported stolen. (stolen_card)"},
	"4000000000000069": {Code: "expired_card", Message: "Your card has expired."},
	"4000000000000127": {Code: "incorrect_cvc", Message: "Your card's security code is incorrect."},
	"4000000000000119": {Code: "processing_error", Message: "An error occurred while processing your card."},
}

func (s *Sandbox) Tokenize(ctx context.Context, card Card) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "tokenize", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := "tok_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[token] = strings.ReplaceAll(card.Number, " ", "")
	return token, nil
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "charge", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	number, ok := s.tokens[req.Token]
	if !ok {
		return "", &Error{Op: "charge", StatusCode: http.StatusBadRequest, Code: "resource_missing", Message: "No such token"}
	}
	if e, ok := sandboxDeclines[number]; ok {
		err := *e
		err.Op = "charge"
		err.StatusCode = http.StatusPaymentRequired
		return "", &err
	}
	if req.AmountMinor <= 0 {
		return "", &Error{Op: "charge", StatusCode: http.StatusBadRequest, Code: "parameter_invalid_integer", Message: "Invalid positive integer"}
	}

	id := "ch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.charges[id] = req.AmountMinor
	return id, nil
}

func (s *Sandbox) Refund(ctx context.Context, chargeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "refund", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charges[chargeID]; !ok {
		return "", &Error{Op: "refund", StatusCode: http.StatusNotFound, Code: "resource_missing", Message: fmt.Sprintf("No such charge: %s", chargeID)}
	}
	if _, ok := s.refunded[chargeID]; ok {
		return "", ErrAlreadyRefunded
	}

	id := "re_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.refunded[chargeID] = id
	return id, nil
}
