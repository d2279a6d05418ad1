// Package stripe talks to a Stripe-compatible card gateway over its
// form-encoded REST API.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ticket-checkout/internal/services/gateway"
)

const DefaultBaseURL = "https://api.stripe.com"

type ClientConfig struct {
	BaseURL   string        `yaml:"base_url"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Client struct {
	// baseURL is the gateway root, without the /v1 suffix.
	baseURL string

	// secretKey is sent as a bearer token.
	secretKey string

	// hc is the http client.
	hc *http.Client
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient creates new instance of the gateway client.
func NewClient(c ClientConfig) *Client {
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		secretKey: c.SecretKey,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

type errorReply struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

// Tokenize exchanges raw card data for a single-use token.
func (c *Client) Tokenize(ctx context.Context, card gateway.Card) (string, error) {
	form := url.Values{}
	form.Set("card[number]", strings.ReplaceAll(card.Number, " ", ""))
	form.Set("card[exp_month]", card.ExpMonth)
	form.Set("card[exp_year]", card.ExpYear)
	form.Set("card[cvc]", card.CVC)
	if card.Name != "" {
		form.Set("card[name]", card.Name)
	}

	var reply struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "tokenize", "/v1/tokens", form, "", &reply); err != nil {
		return "", err
	}
	if reply.ID == "" {
		return "", &gateway.Error{Op: "tokenize", StatusCode: http.StatusOK, Message: "token id missing from response"}
	}
	return reply.ID, nil
}

// Charge captures the amount. The charge only counts when the gateway
// reports it as paid.
func (c *Client) Charge(ctx context.Context, req gateway.ChargeRequest) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("source", req.Token)
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	var reply struct {
		ID             string `json:"id"`
		Paid           bool   `json:"paid"`
		FailureCode    string `json:"failure_code"`
		FailureMessage string `json:"failure_message"`
	}
	if err := c.post(ctx, "charge", "/v1/charges", form, req.IdempotencyKey, &reply); err != nil {
		return "", err
	}
	if reply.ID == "" || !reply.Paid {
		msg := reply.FailureMessage
		if msg == "" {
			msg = "charge was not paid"
		}
		code := reply.FailureCode
		if code == "" {
			code = "card_declined"
		}
		return "", &gateway.Error{Op: "charge", StatusCode: http.StatusOK, Code: code, Message: msg}
	}
	return reply.ID, nil
}

// Refund returns the full amount of a charge. The idempotency key is derived
// from the charge id so retries never refund twice.
func (c *Client) Refund(ctx context.Context, chargeID string) (string, error) {
	form := url.Values{}
	form.Set("charge", chargeID)

	var reply struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "refund", "/v1/refunds", form, "refund-"+chargeID, &reply); err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Code == "charge_already_refunded" {
			return "", gateway.ErrAlreadyRefunded
		}
		return "", err
	}
	if reply.ID == "" {
		return "", &gateway.Error{Op: "refund", StatusCode: http.StatusOK, Message: "refund id missing from response"}
	}
	return reply.ID, nil
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &gateway.Error{Op: op, Err: fmt.Errorf("http.NewRequest: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &gateway.Error{Op: op, Err: fmt.Errorf("http.Do: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &gateway.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var reply errorReply
		if err := json.Unmarshal(body, &reply); err != nil || reply.Error.Message == "" {
			return &gateway.Error{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &gateway.Error{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Code:        reply.Error.Code,
			Message:     reply.Error.Message,
			DeclineCode: reply.Error.DeclineCode,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &gateway.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("json.Decode: %w", err)}
	}
	return nil
}
