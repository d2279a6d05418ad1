package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticket-checkout/internal/status"
	"ticket-checkout/models"

	"github.com/pocketbase/dbx"
)

const userColumns = "id, email, password_hash, roles, created_at"

// CreateUser inserts u and sets its ID. Emails are stored lower-case.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	if _, err := s.FindUserByEmail(ctx, u.Email); err == nil {
		return status.ErrUserExists
	} else if !errors.Is(err, status.ErrUserNotFound) {
		return err
	}

	err := s.db.NewQuery(`INSERT INTO users (email, password_hash, roles, created_at)
		VALUES ({:email}, {:password_hash}, {:roles}, {:created_at})
		RETURNING id`).
		Bind(dbx.Params{
			"email":         u.Email,
			"password_hash": u.PasswordHash,
			"roles":         u.Roles,
			"created_at":    u.CreatedAt.UTC(),
		}).
		WithContext(ctx).
		Row(&u.ID)
	if err != nil {
		return fmt.Errorf("store: create user %s: %w", u.Email, err)
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.NewQuery("SELECT " + userColumns + " FROM users WHERE email = {:email}").
		Bind(dbx.Params{"email": strings.ToLower(strings.TrimSpace(email))}).
		WithContext(ctx).
		One(&u)
	if isNoRows(err) {
		return nil, status.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user %s: %w", email, err)
	}
	return &u, nil
}

func (s *Store) FindUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.NewQuery("SELECT " + userColumns + " FROM users WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&u)
	if isNoRows(err) {
		return nil, status.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user %d: %w", id, err)
	}
	return &u, nil
}
