package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ticket-checkout/internal/card"
	"ticket-checkout/internal/services"
	"ticket-checkout/models"
	"ticket-checkout/security"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type cardFields struct {
	CardNumber  string `json:"card_number"`
	ExpiryMonth text   `json:"expiry_month"`
	ExpiryYear  text   `json:"expiry_year"`
	CVV         text   `json:"cvv"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

func (f cardFields) data() card.Data {
	return card.Data{
		Number:      f.CardNumber,
		ExpiryMonth: string(f.ExpiryMonth),
		ExpiryYear:  string(f.ExpiryYear),
		CVC:         string(f.CVV),
		HolderName:  strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName)),
	}
}

type processPaymentRequest struct {
	cardFields
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	EventName  string          `json:"event_name"`
	TicketType string          `json:"ticket_type"`
	TicketID   *int64          `json:"ticket_id"`
	Quantity   *int            `json:"quantity"`
}

type ticketView struct {
	Key        string          `json:"key"`
	EventName  string          `json:"event_name"`
	TicketType string          `json:"ticket_type"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Status     string          `json:"status"`
	IssuedAt   time.Time       `json:"issued_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

func newTicketView(t *models.Ticket) *ticketView {
	if t == nil {
		return nil
	}
	return &ticketView{
		Key:        t.TicketKey,
		EventName:  t.EventName,
		TicketType: t.TicketType,
		Price:      t.Price,
		Quantity:   t.Quantity,
		Status:     string(t.Status),
		IssuedAt:   t.IssuedAt,
		ExpiresAt:  t.ExpiresAt,
	}
}

type purchaseResponse struct {
	Outcome           string          `json:"outcome"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	Status            string          `json:"status,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	CardBrand         *string         `json:"card_brand,omitempty"`
	CardLastFour      *string         `json:"card_last_four,omitempty"`
	TransactionID     *string         `json:"transaction_id,omitempty"`
	TicketKey         string          `json:"ticket_key,omitempty"`
	RemainingQuantity *int            `json:"remaining_quantity,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Field             string          `json:"field,omitempty"`
	Ticket            *ticketView     `json:"ticket,omitempty"`
}

var outcomeStatus = map[services.Outcome]int{
	services.OutcomeSuccess:               http.StatusCreated,
	services.OutcomeRejectedInput:         http.StatusBadRequest,
	services.OutcomeCardError:             http.StatusBadRequest,
	services.OutcomeInsufficientInventory: http.StatusConflict,
	services.OutcomeFinalizationError:     http.StatusInternalServerError,
}

// ProcessPayment charges the card and issues or reserves tickets.
func (h *PaymentHandler) ProcessPayment(c echo.Context) error {
	userID, ok := security.UserID(c)
	if !ok {
		return respondWithError(c, http.StatusUnauthorized, "User not authenticated")
	}

	var req processPaymentRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	var mode services.PurchaseMode = services.AdHoc{EventName: req.EventName, TicketType: req.TicketType}
	if req.TicketID != nil {
		mode = services.AgainstPool{TicketID: *req.TicketID}
	}

	res, err := h.paymentService.Purchase(c.Request().Context(), userID, services.PurchaseRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Card:     req.data(),
		Quantity: quantity,
		Mode:     mode,
	})
	if err != nil {
		return respondWithStoreError(c, err)
	}

	code := outcomeStatus[res.Outcome]
	if res.NotFound {
		code = http.StatusNotFound
	}

	resp := purchaseResponse{
		Outcome:           string(res.Outcome),
		RemainingQuantity: res.Remaining,
		ErrorMessage:      res.Message,
		Field:             res.Field,
		Ticket:            newTicketView(res.Ticket),
	}
	if p := res.Payment; p != nil {
		resp.PaymentReference = p.Reference
		resp.Status = string(p.Status)
		resp.Amount = p.Amount
		resp.Currency = p.Currency
		resp.CardBrand = p.CardBrand
		resp.CardLastFour = p.CardLastFour
		resp.TransactionID = p.TransactionID
	}
	if res.Ticket != nil {
		resp.TicketKey = res.Ticket.TicketKey
	}
	return c.JSON(code, resp)
}

// PaymentStatus returns the caller's own payment.
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	userID, ok := security.UserID(c)
	if !ok {
		return respondWithError(c, http.StatusUnauthorized, "User not authenticated")
	}

	view, err := h.paymentService.PaymentStatus(c.Request().Context(), userID, c.PathParam("reference"))
	if err != nil {
		return respondWithStoreError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"payment": view.Payment,
		"ticket":  newTicketView(view.Ticket),
	})
}

// ValidateCard runs the card checks without touching the gateway.
func (h *PaymentHandler) ValidateCard(c echo.Context) error {
	var req cardFields
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	if err := card.Validate(req.data()); err != nil {
		var verr *card.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"valid": false,
				"field": verr.Field,
				"error": verr.Message,
			})
		}
		return respondWithError(c, http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"valid":   true,
		"brand":   card.DetectBrand(req.CardNumber),
		"message": "Card details are valid",
	})
}

func (h *PaymentHandler) AvailableTickets(c echo.Context) error {
	tickets, err := h.paymentService.AvailableTickets(c.Request().Context())
	if err != nil {
		return respondWithStoreError(c, err)
	}

	out := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, map[string]any{
			"id":          t.ID,
			"event_name":  t.EventName,
			"ticket_type": t.TicketType,
			"price":       t.Price,
			"quantity":    t.Quantity,
			"sold_out":    t.SoldOut(),
			"issued_at":   t.IssuedAt,
			"expires_at":  t.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"tickets": out,
		"count":   len(out),
	})
}
