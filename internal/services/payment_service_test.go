package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ticket-checkout/internal/card"
	"ticket-checkout/internal/services/gateway"
	"ticket-checkout/internal/status"
	"ticket-checkout/internal/store"
	"ticket-checkout/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Tokenize(ctx context.Context, c gateway.Card) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, chargeID string) (string, error) {
	args := m.Called(ctx, chargeID)
	return args.String(0), args.Error(1)
}

type mockRefundScheduler struct {
	mock.Mock
}

func (m *mockRefundScheduler) Schedule(ctx context.Context, job RefundJob) error {
	return m.Called(ctx, job).Error(0)
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	messages []map[string]any
}

func (p *recordingPublisher) Publish(channel string, message map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.OpenInMemory(context.Background(), name)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *store.Store) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", CreatedAt: testNow}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createTestPool(t *testing.T, s *store.Store, price string, quantity int) *models.Ticket {
	t.Helper()
	pool := &models.Ticket{
		TicketKey:  uuid.NewString(),
		EventName:  "Spring Concert",
		TicketType: "VIP",
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		Status:     models.TicketActive,
		IssuedAt:   testNow,
	}
	require.NoError(t, s.CreateTicket(context.Background(), pool))
	return pool
}

func validCard() card.Data {
	return card.Data{
		Number:      "4242 4242 4242 4242",
		ExpiryMonth: "12",
		ExpiryYear:  fmt.Sprint(testNow.Year() + 2),
		CVC:         "123",
		HolderName:  "Ada Lovelace",
	}
}

func newTestService(st PaymentStore, gw gateway.Gateway, refunds RefundScheduler, pub Publisher) *PaymentService {
	var n *Notifier
	if pub != nil {
		n = NewNotifier(pub)
	}
	svc := NewPaymentService(st, gw, refunds, n, PaymentConfig{})
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestPurchase_AdHocSuccess(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	gw := new(mockGateway)
	pub := &recordingPublisher{}
	svc := newTestService(st, gw, nil, pub)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.MatchedBy(func(c gateway.Card) bool {
		return c.Number == "4242424242424242" && c.CVC == "123"
	})).Return("tok_1", nil).Once()
	gw.On("Charge", ctx, mock.MatchedBy(func(r gateway.ChargeRequest) bool {
		return r.AmountMinor == 4999 && r.Currency == "usd" && r.Token == "tok_1" && r.IdempotencyKey != ""
	})).Return("ch_1", nil).Once()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
		Amount:   decimal.RequireFromString("49.99"),
		Currency: "usd",
		Card:     validCard(),
		Quantity: 1,
		Mode:     AdHoc{},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)

	p := res.Payment
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "49.99", p.Amount.StringFixed(2))
	assert.Equal(t, "VISA", *p.CardBrand)
	assert.Equal(t, "4242", *p.CardLastFour)
	assert.Equal(t, "ch_1", *p.TransactionID)
	require.NotNil(t, p.CompletedAt)

	require.NotNil(t, res.Ticket)
	assert.Equal(t, models.TicketActive, res.Ticket.Status)
	assert.Equal(t, 1, res.Ticket.Quantity)
	assert.Equal(t, "Event Ticket", res.Ticket.EventName)
	assert.Equal(t, models.DefaultTicketType, res.Ticket.TicketType)
	require.NotNil(t, res.Ticket.ExpiresAt)
	assert.Equal(t, testNow.Add(30*24*time.Hour), res.Ticket.ExpiresAt.UTC())

	saved, err := st.FindPaymentByReference(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, saved.Status)
	require.NotNil(t, saved.TicketID)
	assert.Equal(t, res.Ticket.ID, *saved.TicketID)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, fmt.Sprintf("user-%d", user.ID), pub.channels[0])
	assert.Equal(t, "purchase_success", pub.messages[0]["type"])

	gw.AssertExpectations(t)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestPurchase_PoolSuccessUsesServerPrice(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "25.50", 5)
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
	gw.On("Charge", ctx, mock.MatchedBy(func(r gateway.ChargeRequest) bool {
		return r.AmountMinor == 7650 && r.Description == "Spring Concert"
	})).Return("ch_1", nil)

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
		Amount:   decimal.RequireFromString("1.00"),
		Card:     validCard(),
		Quantity: 3,
		Mode:     AgainstPool{TicketID: pool.ID},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "76.50", res.Payment.Amount.StringFixed(2))
	assert.Equal(t, 2, res.Ticket.Quantity)

	reloaded, err := st.FindTicket(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Quantity)
	assert.Equal(t, pool.ID, *res.Payment.TicketID)
}

func TestPurchase_InsufficientInventoryRefunds(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 1)
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil).Once()
	gw.On("Charge", ctx, mock.Anything).Return("ch_1", nil).Once()
	gw.On("Refund", mock.Anything, "ch_1").Return("re_1", nil).Once()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
		Card:     validCard(),
		Quantity: 2,
		Mode:     AgainstPool{TicketID: pool.ID},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeInsufficientInventory, res.Outcome)
	require.NotNil(t, res.Remaining)
	assert.Equal(t, 1, *res.Remaining)
	assert.Contains(t, res.Message, "1 ticket(s) remaining")

	saved, err := st.FindPaymentByReference(ctx, res.Payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, saved.Status)
	assert.Equal(t, "ch_1", *saved.TransactionID)
	assert.Equal(t, "re_1", *saved.RefundID)
	assert.Contains(t, *saved.ErrorMessage, "insufficient inventory")

	reloaded, err := st.FindTicket(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Quantity)

	gw.AssertExpectations(t)
}

// failingTx makes the final payment write fail inside the transaction.
type failingTx struct {
	store.Tx
}

func (f failingTx) SavePayment(ctx context.Context, p *models.Payment) error {
	return errors.New("disk full")
}

type failingStore struct {
	*store.Store
}

func (f failingStore) RunInTx(ctx context.Context, fn func(store.Tx) error) error {
	return f.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{tx})
	})
}

func TestPurchase_FinalizationFailureCompensatesOnce(t *testing.T) {
	for _, mode := range []string{"adhoc", "pool"} {
		t.Run(mode, func(t *testing.T) {
			st := newTestStore(t)
			user := createTestUser(t, st)
			pool := createTestPool(t, st, "10.00", 3)
			gw := new(mockGateway)
			svc := newTestService(failingStore{st}, gw, nil, nil)
			ctx := context.Background()

			gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
			gw.On("Charge", ctx, mock.Anything).Return("ch_1", nil)
			gw.On("Refund", mock.Anything, "ch_1").Return("re_1", nil).Once()

			req := PurchaseRequest{Amount: decimal.RequireFromString("10.00"), Card: validCard(), Quantity: 1, Mode: AdHoc{}}
			if mode == "pool" {
				req.Mode = AgainstPool{TicketID: pool.ID}
			}

			res, err := svc.Purchase(ctx, user.ID, req)
			require.NoError(t, err)
			assert.Equal(t, OutcomeFinalizationError, res.Outcome)

			saved, err := st.FindPaymentByReference(ctx, res.Payment.Reference)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentFailed, saved.Status)
			require.NotNil(t, saved.ErrorMessage)
			assert.Contains(t, *saved.ErrorMessage, "finalization failed: disk full")
			assert.Equal(t, "re_1", *saved.RefundID)
			assert.Nil(t, saved.TicketID)

			// rolled back
			reloaded, err := st.FindTicket(ctx, pool.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, reloaded.Quantity)

			gw.AssertNumberOfCalls(t, "Refund", 1)
		})
	}
}

func TestPurchase_RefundFailureIsQueued(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 0)
	gw := new(mockGateway)
	refunds := new(mockRefundScheduler)
	svc := newTestService(st, gw, refunds, nil)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
	gw.On("Charge", ctx, mock.Anything).Return("ch_1", nil)
	gw.On("Refund", mock.Anything, "ch_1").Return("", &gateway.Error{Op: "refund", StatusCode: 502}).Once()
	refunds.On("Schedule", mock.Anything, mock.MatchedBy(func(j RefundJob) bool {
		return j.ChargeID == "ch_1" && j.Attempts == 0
	})).Return(nil).Once()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: pool.ID}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientInventory, res.Outcome)
	assert.Equal(t, 0, *res.Remaining)

	saved, err := st.FindPaymentByReference(ctx, res.Payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, saved.Status)
	assert.Nil(t, saved.RefundID)
	assert.Contains(t, *saved.ErrorMessage, "refund failed")
	assert.Contains(t, *saved.ErrorMessage, "refund retry scheduled")

	refunds.AssertExpectations(t)
}

func TestPurchase_AlreadyRefundedIsSettled(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 0)
	gw := new(mockGateway)
	refunds := new(mockRefundScheduler)
	svc := newTestService(st, gw, refunds, nil)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
	gw.On("Charge", ctx, mock.Anything).Return("ch_1", nil)
	gw.On("Refund", mock.Anything, "ch_1").Return("", gateway.ErrAlreadyRefunded)

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: pool.ID}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientInventory, res.Outcome)
	refunds.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestPurchase_CardErrors(t *testing.T) {
	tests := []struct {
		name     string
		tokenErr error
		chargeEr error
		wantMsg  string
	}{
		{"declined", nil, &gateway.Error{Op: "charge", Code: "card_declined"}, gateway.CategoryDeclined.UserMessage()},
		{"bad cvc at tokenize", &gateway.Error{Op: "tokenize", Code: "incorrect_cvc"}, nil, gateway.CategoryInvalidCVC.UserMessage()},
		{"timeout", nil, &gateway.Error{Op: "charge", Err: context.DeadlineExceeded}, gateway.CategoryProcessing.UserMessage()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			user := createTestUser(t, st)
			gw := new(mockGateway)
			pub := &recordingPublisher{}
			svc := newTestService(st, gw, nil, pub)
			ctx := context.Background()

			if tt.tokenErr != nil {
				gw.On("Tokenize", ctx, mock.Anything).Return("", tt.tokenErr)
			} else {
				gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
				gw.On("Charge", ctx, mock.Anything).Return("", tt.chargeEr)
			}

			res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
				Amount: decimal.RequireFromString("5"), Card: validCard(), Quantity: 1, Mode: AdHoc{EventName: "Gala"},
			})
			require.NoError(t, err)
			assert.Equal(t, OutcomeCardError, res.Outcome)
			assert.Equal(t, tt.wantMsg, res.Message)

			saved, err := st.FindPaymentByReference(ctx, res.Payment.Reference)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentFailed, saved.Status)
			assert.Nil(t, saved.TransactionID)
			assert.Equal(t, tt.wantMsg, *saved.ErrorMessage)

			require.Len(t, pub.messages, 1)
			assert.Equal(t, "purchase_failed", pub.messages[0]["type"])
			gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
		})
	}
}

func TestPurchase_RejectedInput(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	inactive := createTestPool(t, st, "10.00", 5)
	_, err := st.DB().NewQuery("UPDATE tickets SET status = 'CANCELLED' WHERE id = {:id}").
		Bind(map[string]any{"id": inactive.ID}).Execute()
	require.NoError(t, err)

	expired := validCard()
	expired.ExpiryYear = fmt.Sprint(testNow.Year() - 1)
	badLuhn := validCard()
	badLuhn.Number = "4242424242424241"

	tests := []struct {
		name      string
		req       PurchaseRequest
		field     string
		wantNotFd bool
	}{
		{"zero quantity", PurchaseRequest{Amount: decimal.NewFromInt(5), Card: validCard(), Quantity: 0, Mode: AdHoc{}}, "quantity", false},
		{"no mode", PurchaseRequest{Amount: decimal.NewFromInt(5), Card: validCard(), Quantity: 1}, "ticket_id", false},
		{"zero amount", PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AdHoc{}}, "amount", false},
		{"bad currency", PurchaseRequest{Amount: decimal.NewFromInt(5), Currency: "US", Card: validCard(), Quantity: 1, Mode: AdHoc{}}, "currency", false},
		{"expired card", PurchaseRequest{Amount: decimal.NewFromInt(5), Card: expired, Quantity: 1, Mode: AdHoc{}}, "expiry_year", false},
		{"luhn", PurchaseRequest{Amount: decimal.NewFromInt(5), Card: badLuhn, Quantity: 1, Mode: AdHoc{}}, "card_number", false},
		{"missing pool", PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: 9999}}, "ticket_id", true},
		{"inactive pool", PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: inactive.ID}}, "ticket_id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			svc := newTestService(st, gw, nil, nil)

			res, err := svc.Purchase(context.Background(), user.ID, tt.req)
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejectedInput, res.Outcome)
			assert.Equal(t, tt.field, res.Field)
			assert.Equal(t, tt.wantNotFd, res.NotFound)
			assert.Nil(t, res.Payment)
			gw.AssertNotCalled(t, "Tokenize", mock.Anything, mock.Anything)
		})
	}
}

func TestPurchase_PoolAmountCeiling(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 5)
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)

	res, err := svc.Purchase(context.Background(), user.ID, PurchaseRequest{
		Card:     validCard(),
		Quantity: 100_000_000_000_000_000,
		Mode:     AgainstPool{TicketID: pool.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedInput, res.Outcome)
	assert.Equal(t, "amount", res.Field)
	assert.Nil(t, res.Payment)
	gw.AssertNotCalled(t, "Tokenize", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func setPoolExpiry(t *testing.T, st *store.Store, id int64, at time.Time) {
	t.Helper()
	_, err := st.DB().NewQuery("UPDATE tickets SET expires_at = {:at} WHERE id = {:id}").
		Bind(map[string]any{"id": id, "at": at.UTC()}).Execute()
	require.NoError(t, err)
}

func TestPurchase_ExpiredPoolIsNotSold(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 5)
	setPoolExpiry(t, st, pool.ID, testNow.AddDate(0, -1, 0))
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)
	ctx := context.Background()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
		Card:     validCard(),
		Quantity: 1,
		Mode:     AgainstPool{TicketID: pool.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedInput, res.Outcome)
	assert.Equal(t, "ticket_id", res.Field)
	gw.AssertNotCalled(t, "Tokenize", mock.Anything, mock.Anything)

	reloaded, err := st.FindTicket(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Quantity)

	available, err := svc.AvailableTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestPurchase_PoolExpiringDuringChargeRefunds(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 5)
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)
	ctx := context.Background()

	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil).Once()
	gw.On("Charge", ctx, mock.Anything).Run(func(mock.Arguments) {
		setPoolExpiry(t, st, pool.ID, testNow.Add(-time.Minute))
	}).Return("ch_1", nil).Once()
	gw.On("Refund", mock.Anything, "ch_1").Return("re_1", nil).Once()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{
		Card:     validCard(),
		Quantity: 1,
		Mode:     AgainstPool{TicketID: pool.ID},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeInsufficientInventory, res.Outcome)
	require.NotNil(t, res.Remaining)
	assert.Zero(t, *res.Remaining)

	saved, err := st.FindPaymentByReference(ctx, res.Payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, saved.Status)
	assert.Equal(t, "re_1", *saved.RefundID)

	reloaded, err := st.FindTicket(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Quantity)
	gw.AssertExpectations(t)
}

func TestPurchase_ConcurrentBuyersNeverOversell(t *testing.T) {
	const (
		buyers = 12
		stock  = 5
	)
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "20.00", stock)
	gw := gateway.NewSandbox()
	svc := newTestService(st, gw, nil, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Purchase(context.Background(), user.ID, PurchaseRequest{
				Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: pool.ID},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, outcomes[OutcomeSuccess])
	assert.Equal(t, buyers-stock, outcomes[OutcomeInsufficientInventory])

	reloaded, err := st.FindTicket(context.Background(), pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Quantity)
}

func TestPurchase_CancelledRequestStillCompensates(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st)
	pool := createTestPool(t, st, "10.00", 0)
	gw := new(mockGateway)
	svc := newTestService(st, gw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	gw.On("Tokenize", ctx, mock.Anything).Return("tok_1", nil)
	gw.On("Charge", ctx, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return("ch_1", nil)
	gw.On("Refund", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "ch_1").Return("re_1", nil).Once()

	res, err := svc.Purchase(ctx, user.ID, PurchaseRequest{Card: validCard(), Quantity: 1, Mode: AgainstPool{TicketID: pool.ID}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientInventory, res.Outcome)
	assert.Equal(t, "re_1", *res.Payment.RefundID)
	gw.AssertExpectations(t)
}

func TestPaymentStatus(t *testing.T) {
	st := newTestStore(t)
	owner := createTestUser(t, st)
	other := createTestUser(t, st)
	svc := newTestService(st, gateway.NewSandbox(), nil, nil)
	ctx := context.Background()

	res, err := svc.Purchase(ctx, owner.ID, PurchaseRequest{
		Amount: decimal.NewFromInt(15), Card: validCard(), Quantity: 2, Mode: AdHoc{EventName: "Jazz Night"},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)

	view, err := svc.PaymentStatus(ctx, owner.ID, res.Payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, view.Payment.Status)
	require.NotNil(t, view.Ticket)
	assert.Equal(t, "Jazz Night", view.Ticket.EventName)
	assert.Equal(t, 2, view.Ticket.Quantity)

	_, err = svc.PaymentStatus(ctx, other.ID, res.Payment.Reference)
	assert.ErrorIs(t, err, status.ErrForbidden)

	_, err = svc.PaymentStatus(ctx, owner.ID, "missing")
	assert.ErrorIs(t, err, status.ErrPaymentNotFound)
}

func TestMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"49.99":  4999,
		"10":     1000,
		"0.005":  1,
		"12.345": 1235,
		"0.01":   1,
	}
	for in, want := range tests {
		assert.Equal(t, want, MinorUnits(decimal.RequireFromString(in)), in)
	}
}
