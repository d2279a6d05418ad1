package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-checkout/internal/card"
	"ticket-checkout/internal/services/gateway"
	"ticket-checkout/internal/status"
	"ticket-checkout/internal/store"
	"ticket-checkout/models"
	"ticket-checkout/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeRejectedInput         Outcome = "rejected_input"
	OutcomeCardError             Outcome = "card_error"
	OutcomeInsufficientInventory Outcome = "insufficient_inventory"
	OutcomeFinalizationError     Outcome = "finalization_error"
	OutcomeSuccess               Outcome = "success"
)

// PurchaseMode is either AgainstPool or AdHoc.
type PurchaseMode interface {
	purchaseMode()
}

// AgainstPool buys units from an existing ticket pool at its unit price.
type AgainstPool struct {
	TicketID int64
}

// AdHoc issues a new ticket record for the purchase.
type AdHoc struct {
	EventName  string
	TicketType string
}

func (AgainstPool) purchaseMode() {}
func (AdHoc) purchaseMode()       {}

type PurchaseRequest struct {
	// Amount is ignored for pool purchases, which are priced server side.
	Amount   decimal.Decimal
	Currency string
	Card     card.Data
	Quantity int
	Mode     PurchaseMode
}

type PurchaseResult struct {
	Outcome Outcome
	Payment *models.Payment

	// Ticket is the pool or issued ticket on success.
	Ticket *models.Ticket

	// Remaining is the pool quantity seen when inventory ran out.
	Remaining *int

	// Message is safe to show to the buyer.
	Message string

	// Field names the offending input for rejected_input.
	Field string

	// NotFound is set when the requested pool does not exist.
	NotFound bool
}

// PaymentStore is the persistence the purchase flow needs.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	SavePayment(ctx context.Context, p *models.Payment) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindTicket(ctx context.Context, id int64) (*models.Ticket, error)
	AvailableTickets(ctx context.Context, now time.Time) ([]models.Ticket, error)
	RunInTx(ctx context.Context, fn func(store.Tx) error) error
}

// RefundScheduler takes refunds that failed during compensation.
type RefundScheduler interface {
	Schedule(ctx context.Context, job RefundJob) error
}

type PaymentConfig struct {
	DefaultCurrency  string
	DefaultEventName string
	TicketValidity   time.Duration
}

var maxAmount = decimal.RequireFromString("99999999.99")

type PaymentService struct {
	store    PaymentStore
	gateway  gateway.Gateway
	refunds  RefundScheduler
	notifier *Notifier
	cfg      PaymentConfig
	now      func() time.Time
}

// NewPaymentService wires the purchase flow. refunds and notifier may be nil.
func NewPaymentService(st PaymentStore, gw gateway.Gateway, refunds RefundScheduler, notifier *Notifier, cfg PaymentConfig) *PaymentService {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.DefaultEventName == "" {
		cfg.DefaultEventName = "Event Ticket"
	}
	if cfg.TicketValidity <= 0 {
		cfg.TicketValidity = 30 * 24 * time.Hour
	}
	return &PaymentService{
		store:    st,
		gateway:  gw,
		refunds:  refunds,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func rejected(field, message string) *PurchaseResult {
	return &PurchaseResult{Outcome: OutcomeRejectedInput, Field: field, Message: message}
}

// Purchase charges the card and then reserves or issues the tickets. Once
// money has moved, any failure to record the sale is compensated with a
// refund. The error is non-nil only when the store fails before the card
// is touched; every business outcome is reported in the result.
func (s *PaymentService) Purchase(ctx context.Context, userID int64, req PurchaseRequest) (*PurchaseResult, error) {
	res, err := s.purchase(ctx, userID, req)
	if res != nil {
		monitoring.TrackPurchaseOutcome(string(res.Outcome))
		s.notifier.PurchaseOutcome(userID, res)
	}
	return res, err
}

func (s *PaymentService) purchase(ctx context.Context, userID int64, req PurchaseRequest) (*PurchaseResult, error) {
	currency, amount, bad := s.validate(req)
	if bad != nil {
		return bad, nil
	}

	now := s.now()
	description := s.cfg.DefaultEventName
	switch m := req.Mode.(type) {
	case AgainstPool:
		pool, err := s.store.FindTicket(ctx, m.TicketID)
		if errors.Is(err, status.ErrTicketNotFound) {
			res := rejected("ticket_id", "Ticket not found")
			res.NotFound = true
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("purchase: load ticket %d: %w", m.TicketID, err)
		}
		if !pool.Available(now) {
			return rejected("ticket_id", "This ticket is no longer available"), nil
		}
		amount = pool.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		if !amount.IsPositive() {
			return rejected("amount", "Ticket has no valid price"), nil
		}
		if amount.GreaterThan(maxAmount) {
			return rejected("amount", "Amount is too large"), nil
		}
		description = pool.EventName
	case AdHoc:
		if m.EventName != "" {
			description = m.EventName
		}
	}

	payment := &models.Payment{
		Reference: uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentPending,
		CreatedAt: now,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	log := slog.With("payment_reference", payment.Reference, "user_id", userID)

	token, err := s.gateway.Tokenize(ctx, gateway.Card{
		Number:   card.Digits(req.Card.Number),
		ExpMonth: strings.TrimSpace(req.Card.ExpiryMonth),
		ExpYear:  strings.TrimSpace(req.Card.ExpiryYear),
		CVC:      strings.TrimSpace(req.Card.CVC),
		Name:     strings.TrimSpace(req.Card.HolderName),
	})
	var chargeID string
	if err == nil {
		chargeID, err = s.gateway.Charge(ctx, gateway.ChargeRequest{
			AmountMinor:    MinorUnits(amount),
			Currency:       strings.ToLower(currency),
			Token:          token,
			Description:    description,
			IdempotencyKey: payment.Reference,
		})
	}
	if err != nil {
		category := gateway.Classify(err)
		log.Warn("card payment failed", "category", category, "error", err)

		_ = payment.Fail("", category.UserMessage(), s.now())
		if serr := s.store.SavePayment(context.WithoutCancel(ctx), payment); serr != nil {
			log.Error("failed to record declined payment", "error", serr)
		}
		return &PurchaseResult{Outcome: OutcomeCardError, Payment: payment, Message: category.UserMessage()}, nil
	}

	// Money has moved. The rest must run to completion even if the caller
	// goes away, otherwise a charge could be left without ticket or refund.
	fctx := context.WithoutCancel(ctx)
	log = log.With("charge_id", chargeID)

	var (
		final     models.Payment
		ticket    *models.Ticket
		remaining int
		shortfall bool
	)
	err = s.store.RunInTx(fctx, func(tx store.Tx) error {
		final = *payment
		shortfall = false
		finishedAt := s.now()
		brand, lastFour := string(card.DetectBrand(req.Card.Number)), card.LastFour(req.Card.Number)

		switch m := req.Mode.(type) {
		case AgainstPool:
			t, err := tx.LockTicket(fctx, m.TicketID)
			if err != nil {
				return err
			}
			if !t.Available(finishedAt) || !t.Take(req.Quantity) {
				if t.Available(finishedAt) {
					remaining = t.Quantity
				}
				shortfall = true
				if err := final.Fail(chargeID, "insufficient inventory", finishedAt); err != nil {
					return err
				}
				return tx.SavePayment(fctx, &final)
			}
			if err := tx.SaveTicketQuantity(fctx, t); err != nil {
				return err
			}
			ticket = t

		case AdHoc:
			expires := finishedAt.Add(s.cfg.TicketValidity)
			ticketType := m.TicketType
			if ticketType == "" {
				ticketType = models.DefaultTicketType
			}
			t := &models.Ticket{
				TicketKey:  uuid.NewString(),
				UserID:     &userID,
				PaymentID:  &payment.ID,
				EventName:  description,
				TicketType: ticketType,
				Price:      amount,
				Quantity:   req.Quantity,
				Status:     models.TicketActive,
				IssuedAt:   finishedAt,
				ExpiresAt:  &expires,
			}
			if err := tx.CreateTicket(fctx, t); err != nil {
				return err
			}
			ticket = t
		}

		if err := final.Complete(chargeID, brand, lastFour, ticket.ID, finishedAt); err != nil {
			return err
		}
		return tx.SavePayment(fctx, &final)
	})

	switch {
	case err != nil:
		log.Error("finalization failed after charge, refunding", "error", err)

		_ = payment.Fail(chargeID, "finalization failed: "+err.Error(), s.now())
		s.compensate(fctx, payment, log)
		if serr := s.store.SavePayment(fctx, payment); serr != nil {
			log.Error("failed to record finalization failure", "error", serr)
		}
		return &PurchaseResult{
			Outcome: OutcomeFinalizationError,
			Payment: payment,
			Message: "Payment could not be completed. Any charge has been refunded.",
		}, nil

	case shortfall:
		*payment = final
		log.Warn("insufficient inventory after charge, refunding", "requested", req.Quantity, "remaining", remaining)

		s.compensate(fctx, payment, log)
		if serr := s.store.SavePayment(fctx, payment); serr != nil {
			log.Error("failed to record refund", "error", serr)
		}
		return &PurchaseResult{
			Outcome:   OutcomeInsufficientInventory,
			Payment:   payment,
			Remaining: &remaining,
			Message:   fmt.Sprintf("Only %d ticket(s) remaining. Your payment has been refunded.", remaining),
		}, nil
	}

	*payment = final
	log.Info("purchase completed", "ticket_id", ticket.ID, "amount", amount.StringFixed(2), "currency", currency)
	return &PurchaseResult{Outcome: OutcomeSuccess, Payment: payment, Ticket: ticket}, nil
}

func (s *PaymentService) validate(req PurchaseRequest) (string, decimal.Decimal, *PurchaseResult) {
	if req.Quantity < 1 {
		return "", decimal.Zero, rejected("quantity", "Quantity must be at least 1")
	}
	if req.Mode == nil {
		return "", decimal.Zero, rejected("ticket_id", "A ticket or an event name is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if len(currency) != 3 || strings.Trim(currency, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return "", decimal.Zero, rejected("currency", "Currency must be a 3-letter ISO code")
	}

	amount := req.Amount.Round(2)
	if _, adHoc := req.Mode.(AdHoc); adHoc {
		if !amount.IsPositive() {
			return "", decimal.Zero, rejected("amount", "Amount must be greater than zero")
		}
		if amount.GreaterThan(maxAmount) {
			return "", decimal.Zero, rejected("amount", "Amount is too large")
		}
	}

	if err := card.ValidateAt(req.Card, s.now()); err != nil {
		var verr *card.ValidationError
		if errors.As(err, &verr) {
			return "", decimal.Zero, rejected(verr.Field, verr.Message)
		}
		return "", decimal.Zero, rejected("card", err.Error())
	}

	return currency, amount, nil
}

// compensate refunds the payment's charge. A failed refund is recorded on
// the payment and handed to the retry queue; it never changes the outcome.
func (s *PaymentService) compensate(ctx context.Context, p *models.Payment, log *slog.Logger) {
	chargeID := *p.TransactionID

	refundID, err := s.gateway.Refund(ctx, chargeID)
	switch {
	case err == nil:
		p.RefundID = &refundID
		monitoring.TrackRefund("refunded")
		log.Info("charge refunded", "refund_id", refundID)
		return
	case errors.Is(err, gateway.ErrAlreadyRefunded):
		monitoring.TrackRefund("already_refunded")
		log.Info("charge was already refunded")
		return
	}

	monitoring.TrackRefund("failed")
	log.Error("refund failed", "error", err)
	p.AppendError("refund failed: " + err.Error())

	if s.refunds == nil {
		return
	}
	job := RefundJob{Reference: p.Reference, ChargeID: chargeID, EnqueuedAt: s.now()}
	if qerr := s.refunds.Schedule(ctx, job); qerr != nil {
		log.Error("refund retry could not be scheduled", "error", qerr)
		p.AppendError("refund retry not scheduled")
		return
	}
	monitoring.TrackRefund("queued")
	p.AppendError("refund retry scheduled")
}

type PaymentView struct {
	Payment *models.Payment
	Ticket  *models.Ticket
}

// PaymentStatus returns the payment and its ticket if it belongs to userID.
func (s *PaymentService) PaymentStatus(ctx context.Context, userID int64, reference string) (*PaymentView, error) {
	p, err := s.store.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, status.ErrForbidden
	}

	view := &PaymentView{Payment: p}
	if p.TicketID != nil {
		t, err := s.store.FindTicket(ctx, *p.TicketID)
		if err != nil && !errors.Is(err, status.ErrTicketNotFound) {
			return nil, err
		}
		view.Ticket = t
	}
	return view, nil
}

func (s *PaymentService) AvailableTickets(ctx context.Context) ([]models.Ticket, error) {
	return s.store.AvailableTickets(ctx, s.now())
}

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
