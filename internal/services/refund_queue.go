package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"ticket-checkout/internal/services/gateway"
	"ticket-checkout/models"
	"ticket-checkout/monitoring"

	"github.com/redis/go-redis/v9"
)

const DefaultRefundQueueKey = "refunds:pending"

// RefundJob is a compensating refund waiting to be retried.
type RefundJob struct {
	Reference  string    `json:"payment_reference"`
	ChargeID   string    `json:"charge_id"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DefaultRefundLease is how long a claimed job stays hidden from other
// workers before it becomes due again.
const DefaultRefundLease = 5 * time.Minute

// RefundQueue keeps refund jobs in a Redis sorted set scored by the unix
// time they become due. A claimed job stays in the set with its score moved
// past the lease, so a worker that dies mid-refund loses nothing.
type RefundQueue struct {
	rdb     redis.Cmdable
	key     string
	backoff time.Duration
	lease   time.Duration
	now     func() time.Time
}

func NewRefundQueue(rdb redis.Cmdable, key string, backoff time.Duration) *RefundQueue {
	if key == "" {
		key = DefaultRefundQueueKey
	}
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &RefundQueue{
		rdb:     rdb,
		key:     key,
		backoff: backoff,
		lease:   DefaultRefundLease,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (q *RefundQueue) Key() string {
	return q.key
}

// delay doubles per attempt, capped at 64x the base backoff.
func (q *RefundQueue) delay(attempts int) time.Duration {
	if attempts > 6 {
		attempts = 6
	}
	return q.backoff << attempts
}

// Schedule adds the job, due after the backoff for its attempt count.
func (q *RefundQueue) Schedule(ctx context.Context, job RefundJob) error {
	member, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("refund queue: encode %s: %w", job.Reference, err)
	}
	due := q.now().Add(q.delay(job.Attempts))
	if err := q.rdb.ZAdd(ctx, q.key, redis.Z{Score: float64(due.Unix()), Member: string(member)}).Err(); err != nil {
		return fmt.Errorf("refund queue: schedule %s: %w", job.Reference, err)
	}
	return nil
}

type claimedJob struct {
	RefundJob
	member string
}

// claimDue leases up to limit due jobs. The lease only moves a score
// forward, so a job another worker leased first is skipped.
func (q *RefundQueue) claimDue(ctx context.Context, limit int64) ([]claimedJob, error) {
	now := q.now()
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("refund queue: list due: %w", err)
	}

	leaseUntil := float64(now.Add(q.lease).Unix())
	var jobs []claimedJob
	for _, m := range members {
		n, err := q.rdb.ZAddArgs(ctx, q.key, redis.ZAddArgs{
			XX:      true,
			GT:      true,
			Ch:      true,
			Members: []redis.Z{{Score: leaseUntil, Member: m}},
		}).Result()
		if err != nil {
			return jobs, fmt.Errorf("refund queue: claim: %w", err)
		}
		if n == 0 {
			continue
		}
		var job RefundJob
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			slog.Error("dropping undecodable refund job", "member", m, "error", err)
			q.remove(ctx, m)
			continue
		}
		jobs = append(jobs, claimedJob{RefundJob: job, member: m})
	}
	return jobs, nil
}

// remove drops a claimed member once its outcome is recorded.
func (q *RefundQueue) remove(ctx context.Context, member string) {
	if err := q.rdb.ZRem(ctx, q.key, member).Err(); err != nil {
		slog.Error("refund job not removed, it will be retried after its lease", "error", err)
	}
}

// reschedule adds job for its next attempt before dropping the claimed
// member. A failure in between leaves a duplicate rather than a gap.
func (q *RefundQueue) reschedule(ctx context.Context, claimed claimedJob, job RefundJob) error {
	if err := q.Schedule(ctx, job); err != nil {
		return err
	}
	q.remove(ctx, claimed.member)
	return nil
}

// RefundPaymentStore is what the retry worker needs to record results.
type RefundPaymentStore interface {
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error
}

// RefundWorker retries queued refunds until they succeed or run out of
// attempts.
type RefundWorker struct {
	queue       *RefundQueue
	gateway     gateway.Gateway
	store       RefundPaymentStore
	maxAttempts int
	batch       int64
}

func NewRefundWorker(q *RefundQueue, gw gateway.Gateway, st RefundPaymentStore, maxAttempts int) *RefundWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RefundWorker{queue: q, gateway: gw, store: st, maxAttempts: maxAttempts, batch: 50}
}

func (w *RefundWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessDue(ctx); err != nil {
				slog.Error("refund retry pass failed", "error", err)
			}
		}
	}
}

// ProcessDue runs one pass over due jobs and returns how many refunds
// settled. Jobs claimed but not reached before ctx ends return to the queue
// when their lease runs out.
func (w *RefundWorker) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := w.queue.claimDue(ctx, w.batch)
	settled := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if w.retry(ctx, job) {
			settled++
		}
	}
	return settled, err
}

// retry finishes a claimed job even if ctx is cancelled while it runs.
func (w *RefundWorker) retry(ctx context.Context, claimed claimedJob) bool {
	ctx = context.WithoutCancel(ctx)
	job := claimed.RefundJob
	log := slog.With("payment_reference", job.Reference, "charge_id", job.ChargeID, "attempt", job.Attempts+1)

	refundID, err := w.gateway.Refund(ctx, job.ChargeID)
	switch {
	case err == nil:
		monitoring.TrackRefund("refunded")
		log.Info("queued refund succeeded", "refund_id", refundID)
		w.record(ctx, job.Reference, &refundID, "refund succeeded on retry")
		w.queue.remove(ctx, claimed.member)
		return true
	case errors.Is(err, gateway.ErrAlreadyRefunded):
		monitoring.TrackRefund("already_refunded")
		log.Info("queued refund was already settled")
		w.record(ctx, job.Reference, nil, "refund already settled")
		w.queue.remove(ctx, claimed.member)
		return true
	}

	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		monitoring.TrackRefund("abandoned")
		log.Error("giving up on refund, manual action required", "error", err)
		w.record(ctx, job.Reference, nil, fmt.Sprintf("refund abandoned after %d attempts", job.Attempts))
		w.queue.remove(ctx, claimed.member)
		return false
	}

	log.Warn("queued refund failed, rescheduling", "error", err)
	if err := w.queue.reschedule(ctx, claimed, job); err != nil {
		log.Error("refund could not be rescheduled, it will be retried after its lease", "error", err)
	}
	return false
}

func (w *RefundWorker) record(ctx context.Context, reference string, refundID *string, note string) {
	p, err := w.store.FindPaymentByReference(ctx, reference)
	if err != nil {
		slog.Error("refund result not recorded", "payment_reference", reference, "error", err)
		return
	}
	if refundID != nil {
		p.RefundID = refundID
	}
	p.AppendError(note)
	if err := w.store.SavePayment(ctx, p); err != nil {
		slog.Error("refund result not recorded", "payment_reference", reference, "error", err)
	}
}
