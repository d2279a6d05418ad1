package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"ticket-checkout/config"
	"ticket-checkout/models"
	"ticket-checkout/monitoring"
)

type LockoutStore interface {
	FindLoginAttempt(ctx context.Context, userID int64) (*models.LoginAttempt, error)
	MutateLoginAttempt(ctx context.Context, userID int64, create bool, now time.Time, fn func(*models.LoginAttempt) error) error
}

type LockoutInfo struct {
	IsLocked         bool       `json:"is_locked"`
	FailedAttempts   int        `json:"failed_attempts"`
	LockedUntil      *time.Time `json:"locked_until"`
	RemainingSeconds *int       `json:"remaining_seconds"`
}

// LockoutService counts failed logins per user and locks the account each
// time the counter crosses a multiple of the policy threshold. The counter
// only goes back to zero on a successful login or a manual reset.
type LockoutService struct {
	store  LockoutStore
	policy config.LockoutPolicy
	now    func() time.Time
}

func NewLockoutService(st LockoutStore, policy config.LockoutPolicy) *LockoutService {
	return &LockoutService{
		store:  st,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *LockoutService) Policy() config.LockoutPolicy {
	return s.policy
}

// RecordFailure returns the attempts left before the next lock, or nil when
// this failure locked the account.
func (s *LockoutService) RecordFailure(ctx context.Context, userID int64) (*int, error) {
	now := s.now()
	var remaining *int

	err := s.store.MutateLoginAttempt(ctx, userID, true, now, func(a *models.LoginAttempt) error {
		a.FailedAttempts++
		a.UpdatedAt = now

		if d := s.policy.LockDuration(a.FailedAttempts); d > 0 {
			until := now.Add(d)
			a.LockedUntil = &until
			remaining = nil

			monitoring.TrackLockout()
			slog.Warn("account locked", "user_id", userID, "failed_attempts", a.FailedAttempts, "locked_until", until)
			return nil
		}

		left := s.policy.Remaining(a.FailedAttempts)
		remaining = &left
		return nil
	})
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

// RecordSuccess clears the counter and any lock. Users without a record are
// left alone.
func (s *LockoutService) RecordSuccess(ctx context.Context, userID int64) error {
	now := s.now()
	return s.store.MutateLoginAttempt(ctx, userID, false, now, func(a *models.LoginAttempt) error {
		a.Reset(now)
		return nil
	})
}

// Reset is the administrative unlock.
func (s *LockoutService) Reset(ctx context.Context, userID int64) error {
	if err := s.RecordSuccess(ctx, userID); err != nil {
		return err
	}
	slog.Info("lockout reset", "user_id", userID)
	return nil
}

func (s *LockoutService) IsLocked(ctx context.Context, userID int64) (bool, error) {
	a, err := s.store.FindLoginAttempt(ctx, userID)
	if err != nil || a == nil {
		return false, err
	}
	return a.IsLocked(s.now()), nil
}

func (s *LockoutService) LockoutInfo(ctx context.Context, userID int64) (*LockoutInfo, error) {
	a, err := s.store.FindLoginAttempt(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := &LockoutInfo{}
	if a == nil {
		return info, nil
	}

	info.FailedAttempts = a.FailedAttempts
	info.LockedUntil = a.LockedUntil

	now := s.now()
	if a.IsLocked(now) {
		info.IsLocked = true
		secs := int(math.Ceil(a.LockedUntil.Sub(now).Seconds()))
		info.RemainingSeconds = &secs
	}
	return info, nil
}
