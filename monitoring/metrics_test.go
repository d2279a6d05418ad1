package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackPurchaseOutcome(t *testing.T) {
	before := testutil.ToFloat64(purchaseOutcomes.WithLabelValues("success"))

	TrackPurchaseOutcome("success")
	TrackPurchaseOutcome("success")

	assert.Equal(t, before+2, testutil.ToFloat64(purchaseOutcomes.WithLabelValues("success")))
}

func TestTrackGatewayRequest(t *testing.T) {
	before := testutil.ToFloat64(gatewayRequests.WithLabelValues("charge", "declined"))

	TrackGatewayRequest("charge", "declined", 120*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(gatewayRequests.WithLabelValues("charge", "declined")))
	assert.Equal(t, 1, testutil.CollectAndCount(gatewayDuration, "checkout_gateway_request_duration_seconds"))
}

func TestLockoutAndLoginCounters(t *testing.T) {
	beforeLock := testutil.ToFloat64(lockouts)
	beforeFail := testutil.ToFloat64(loginAttempts.WithLabelValues("failure"))

	TrackLoginAttempt("failure")
	TrackLockout()

	assert.Equal(t, beforeLock+1, testutil.ToFloat64(lockouts))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(loginAttempts.WithLabelValues("failure")))
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("gateway", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("gateway")))
}

func TestMonitor_CollectRefundQueueMetrics(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMonitor(db, "refunds:pending", time.Second)

	mock.ExpectZCard("refunds:pending").SetVal(3)
	m.collectRefundQueueMetrics(context.Background())

	assert.Equal(t, 3.0, testutil.ToFloat64(refundQueueDepth))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_CollectKeepsLastValueOnError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMonitor(db, "refunds:pending", time.Second)
	refundQueueDepth.Set(7)

	mock.ExpectZCard("refunds:pending").SetErr(errors.New("connection refused"))
	m.collectRefundQueueMetrics(context.Background())

	assert.Equal(t, 7.0, testutil.ToFloat64(refundQueueDepth))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMonitor(db, "refunds:pending", time.Hour)
	mock.ExpectZCard("refunds:pending").SetVal(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
