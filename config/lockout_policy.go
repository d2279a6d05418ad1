package config

import (
	"fmt"
	"time"
)

// LockoutPolicy is the escalation schedule for failed logins. A lock is
// applied each time the failure counter reaches a multiple of Threshold;
// the k-th lock lasts Base * Multiplier^(k-1).
type LockoutPolicy struct {
	threshold  int
	base       time.Duration
	multiplier int
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{threshold: 10, base: 300 * time.Second, multiplier: 2}
}

func NewLockoutPolicy(threshold int, base time.Duration, multiplier int) (LockoutPolicy, error) {
	if threshold < 1 {
		return LockoutPolicy{}, fmt.Errorf("config: lockout threshold must be positive, got %d", threshold)
	}
	if base <= 0 {
		return LockoutPolicy{}, fmt.Errorf("config: lockout base duration must be positive, got %s", base)
	}
	if multiplier < 1 {
		return LockoutPolicy{}, fmt.Errorf("config: lockout multiplier must be at least 1, got %d", multiplier)
	}
	return LockoutPolicy{threshold: threshold, base: base, multiplier: multiplier}, nil
}

func (p LockoutPolicy) Threshold() int { return p.threshold }
func (p LockoutPolicy) Base() time.Duration { return p.base }
func (p LockoutPolicy) Multiplier() int { return p.multiplier }

// LockDuration returns the lock to apply once the counter reaches failures,
// or zero when failures is not a positive multiple of the threshold.
func (p LockoutPolicy) LockDuration(failures int) time.Duration {
	if failures < p.threshold || failures%p.threshold != 0 {
		return 0
	}
	d := p.base
	for k := failures / p.threshold; k > 1; k-- {
		// saturate instead of overflowing for absurd counters
		if d > time.Duration(1<<62)/time.Duration(p.multiplier) {
			return time.Duration(1<<62)
		}
		d *= time.Duration(p.multiplier)
	}
	return d
}

// Remaining is the number of failures left before the next lock.
func (p LockoutPolicy) Remaining(failures int) int {
	return p.threshold - failures%p.threshold
}
