package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-checkout/internal/status"
	"ticket-checkout/models"
	"ticket-checkout/monitoring"

	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUser(ctx context.Context, id int64) (*models.User, error)
}

type TokenIssuer interface {
	Issue(u *models.User) (token string, expiresAt time.Time, err error)
}

// LoginError carries what the caller may tell the client about a rejected
// login.
type LoginError struct {
	Err               error
	RemainingAttempts *int
	Lockout           *LockoutInfo
}

func (e *LoginError) Error() string { return e.Err.Error() }
func (e *LoginError) Unwrap() error { return e.Err }

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type AuthService struct {
	users    UserStore
	lockout  *LockoutService
	tokens   TokenIssuer
	notifier *Notifier

	// compared against when the email is unknown so both paths hash
	dummyHash []byte
}

func NewAuthService(users UserStore, lockout *LockoutService, tokens TokenIssuer, notifier *Notifier) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &AuthService{
		users:     users,
		lockout:   lockout,
		tokens:    tokens,
		notifier:  notifier,
		dummyHash: dummy,
	}
}

// Login checks the lockout before the password; a locked account never
// reaches the hash comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, status.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		monitoring.TrackLoginAttempt("unknown_user")
		return nil, &LoginError{Err: status.ErrBadCredentials}
	}
	if err != nil {
		return nil, err
	}

	info, err := s.lockout.LockoutInfo(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if info.IsLocked {
		monitoring.TrackLoginAttempt("locked")
		return nil, &LoginError{Err: status.ErrAccountLocked, Lockout: info}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		monitoring.TrackLoginAttempt("failure")

		remaining, ferr := s.lockout.RecordFailure(ctx, user.ID)
		if ferr != nil {
			return nil, ferr
		}
		if remaining != nil {
			return nil, &LoginError{Err: status.ErrBadCredentials, RemainingAttempts: remaining}
		}

		info, ierr := s.lockout.LockoutInfo(ctx, user.ID)
		if ierr != nil {
			return nil, ierr
		}
		s.notifier.LockedOut(user.ID, info)
		return nil, &LoginError{Err: status.ErrAccountLocked, Lockout: info}
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("auth: issue token: %w", err)
	}

	monitoring.TrackLoginAttempt("success")
	slog.Info("user logged in", "user_id", user.ID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string, roles ...string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("auth: invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("auth: password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Roles:        strings.Join(roles, ","),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LockoutInfoByEmail reports an unknown email as not locked.
func (s *AuthService) LockoutInfoByEmail(ctx context.Context, email string) (*LockoutInfo, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, status.ErrUserNotFound) {
		return &LockoutInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.lockout.LockoutInfo(ctx, user.ID)
}

// ResetLockout clears the lockout of an existing user.
func (s *AuthService) ResetLockout(ctx context.Context, userID int64) error {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return err
	}
	return s.lockout.Reset(ctx, userID)
}
