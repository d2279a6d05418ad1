package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/services/gateway"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, SecretKey: "sk_test_123", Timeout: time.Second})
}

func readForm(t *testing.T, r *http.Request) url.Values {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return form
}

func TestClient_Tokenize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		form := readForm(t, r)
		assert.Equal(t, "4242424242424242", form.Get("card[number]"))
		assert.Equal(t, "12", form.Get("card[exp_month]"))
		assert.Equal(t, "2030", form.Get("card[exp_year]"))
		assert.Equal(t, "123", form.Get("card[cvc]"))

		w.Write([]byte(`{"id":"tok_abc"}`))
	})

	token, err := c.Tokenize(context.Background(), gateway.Card{
		Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "2030", CVC: "123", Name: "Jane Doe",
	})

	require.NoError(t, err)
	assert.Equal(t, "tok_abc", token)
}

func TestClient_TokenizeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"incorrect_cvc","message":"Your card's security code is incorrect."}}`))
	})

	_, err := c.Tokenize(context.Background(), gateway.Card{Number: "4000000000000127"})

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "tokenize", gerr.Op)
	assert.Equal(t, http.StatusPaymentRequired, gerr.StatusCode)
	assert.Equal(t, "incorrect_cvc", gerr.Code)
	assert.Equal(t, gateway.CategoryInvalidCVC, gateway.Classify(err))
}

func TestClient_ChargeDeclineCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"lost_card","message":"Your card was declined."}}`))
	})

	_, err := c.Charge(context.Background(), gateway.ChargeRequest{AmountMinor: 1000, Currency: "usd", Token: "tok_1"})

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "card_declined", gerr.Code)
	assert.Equal(t, "lost_card", gerr.DeclineCode)
	assert.Equal(t, gateway.CategoryLostOrStolen, gateway.Classify(err))
}

func TestClient_Charge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "pay-ref-1", r.Header.Get("Idempotency-Key"))

		form := readForm(t, r)
		assert.Equal(t, "4999", form.Get("amount"))
		assert.Equal(t, "usd", form.Get("currency"))
		assert.Equal(t, "tok_abc", form.Get("source"))
		assert.Equal(t, "Event Ticket", form.Get("description"))

		w.Write([]byte(`{"id":"ch_123","paid":true}`))
	})

	chargeID, err := c.Charge(context.Background(), gateway.ChargeRequest{
		AmountMinor:    4999,
		Currency:       "USD",
		Token:          "tok_abc",
		Description:    "Event Ticket",
		IdempotencyKey: "pay-ref-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "ch_123", chargeID)
}

func TestClient_ChargeNotPaid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ch_123","paid":false,"failure_code":"insufficient_funds","failure_message":"Your card has insufficient funds."}`))
	})

	_, err := c.Charge(context.Background(), gateway.ChargeRequest{AmountMinor: 100, Token: "tok"})

	require.Error(t, err)
	assert.Equal(t, gateway.CategoryInsufficientFunds, gateway.Classify(err))
}

func TestClient_ChargeNotPaidWithoutReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ch_123"}`))
	})

	_, err := c.Charge(context.Background(), gateway.ChargeRequest{AmountMinor: 100, Token: "tok"})

	require.Error(t, err)
	assert.Equal(t, gateway.CategoryDeclined, gateway.Classify(err))
}

func TestClient_ChargeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.Charge(context.Background(), gateway.ChargeRequest{AmountMinor: 100, Token: "tok"})

	require.Error(t, err)
	assert.Equal(t, gateway.CategoryProcessing, gateway.Classify(err))
}

func TestClient_ServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Charge(context.Background(), gateway.ChargeRequest{AmountMinor: 100, Token: "tok"})

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadGateway, gerr.StatusCode)
	assert.Equal(t, gateway.CategoryProcessing, gateway.Classify(err))
}

func TestClient_Refund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "refund-ch_123", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "ch_123", readForm(t, r).Get("charge"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"re_456","status":"succeeded"}`))
	})

	refundID, err := c.Refund(context.Background(), "ch_123")

	require.NoError(t, err)
	assert.Equal(t, "re_456", refundID)
}

func TestClient_RefundAlreadyRefunded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"charge_already_refunded","message":"Charge ch_123 has already been refunded."}}`))
	})

	_, err := c.Refund(context.Background(), "ch_123")

	assert.True(t, errors.Is(err, gateway.ErrAlreadyRefunded))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{SecretKey: "sk"})

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 10*time.Second, c.hc.Timeout)
}
