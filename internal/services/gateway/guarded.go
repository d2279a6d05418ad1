package gateway

import (
	"context"
	"errors"
	"time"

	"ticket-checkout/monitoring"
	"ticket-checkout/utils"
)

// Guarded puts a circuit breaker in front of Tokenize and Charge and
// records request metrics. Refund always reaches the wrapped gateway so a
// compensation is attempted even while the breaker is open.
type Guarded struct {
	next    Gateway
	breaker *utils.CircuitBreaker
}

// NewGuarded wraps next. Unless s.IsFailure is set, only processing errors
// count against the breaker.
func NewGuarded(next Gateway, s utils.BreakerSettings) *Guarded {
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			return Classify(err) == CategoryProcessing
		}
	}
	return &Guarded{
		next:    next,
		breaker: utils.NewCircuitBreakerWithSettings("gateway", s),
	}
}

func (g *Guarded) Breaker() *utils.CircuitBreaker {
	return g.breaker
}

func (g *Guarded) Tokenize(ctx context.Context, card Card) (string, error) {
	return g.guard(ctx, "tokenize", func() (string, error) {
		return g.next.Tokenize(ctx, card)
	})
}

func (g *Guarded) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	return g.guard(ctx, "charge", func() (string, error) {
		return g.next.Charge(ctx, req)
	})
}

func (g *Guarded) Refund(ctx context.Context, chargeID string) (string, error) {
	start := time.Now()
	id, err := g.next.Refund(ctx, chargeID)
	observe("refund", start, err)
	return id, err
}

func (g *Guarded) guard(ctx context.Context, op string, call func() (string, error)) (string, error) {
	start := time.Now()
	res, err := g.breaker.Execute(ctx, func() (any, error) {
		return call()
	})
	monitoring.SetBreakerState(g.breaker.Name(), int(g.breaker.State()))
	observe(op, start, err)
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrAlreadyRefunded):
		result = "already_refunded"
	case errors.Is(err, utils.ErrOpenState), errors.Is(err, utils.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = string(Classify(err))
	}
	monitoring.TrackGatewayRequest(op, result, time.Since(start))
}
