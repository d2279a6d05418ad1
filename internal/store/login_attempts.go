package store

import (
	"context"
	"fmt"
	"time"

	"ticket-checkout/models"

	"github.com/pocketbase/dbx"
)

const loginAttemptColumns = "id, user_id, failed_attempts, locked_until, created_at, updated_at"

// FindLoginAttempt returns nil without error when the user has no record.
func (s *Store) FindLoginAttempt(ctx context.Context, userID int64) (*models.LoginAttempt, error) {
	return findLoginAttempt(ctx, s.db, userID, "")
}

func findLoginAttempt(ctx context.Context, b dbx.Builder, userID int64, lockClause string) (*models.LoginAttempt, error) {
	var a models.LoginAttempt
	err := b.NewQuery("SELECT " + loginAttemptColumns + " FROM login_attempts WHERE user_id = {:user_id}" + lockClause).
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		One(&a)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find login attempt for user %d: %w", userID, err)
	}
	return &a, nil
}

// MutateLoginAttempt runs fn on the user's record while holding its row
// lock and saves the result. With create set, a missing record is created
// first; otherwise a missing record makes the call a no-op.
func (s *Store) MutateLoginAttempt(ctx context.Context, userID int64, create bool, now time.Time, fn func(a *models.LoginAttempt) error) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		if create {
			_, err := tx.NewQuery(`INSERT INTO login_attempts (user_id, failed_attempts, created_at, updated_at)
				VALUES ({:user_id}, 0, {:now}, {:now})
				ON CONFLICT (user_id) DO NOTHING`).
				Bind(dbx.Params{"user_id": userID, "now": now.UTC()}).
				WithContext(ctx).
				Execute()
			if err != nil {
				return fmt.Errorf("store: create login attempt for user %d: %w", userID, err)
			}
		}

		a, err := findLoginAttempt(ctx, tx, userID, s.lockClause)
		if err != nil || a == nil {
			return err
		}

		if err := fn(a); err != nil {
			return err
		}

		_, err = tx.NewQuery(`UPDATE login_attempts
			SET failed_attempts = {:failed_attempts}, locked_until = {:locked_until}, updated_at = {:updated_at}
			WHERE id = {:id}`).
			Bind(dbx.Params{
				"id":              a.ID,
				"failed_attempts": a.FailedAttempts,
				"locked_until":    nullableTime(a.LockedUntil),
				"updated_at":      now.UTC(),
			}).
			WithContext(ctx).
			Execute()
		if err != nil {
			return fmt.Errorf("store: save login attempt for user %d: %w", userID, err)
		}
		return nil
	})
}
