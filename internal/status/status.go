package status

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment: payment not found")
	ErrInvalidTransition = errors.New("payment: invalid status transition")
	ErrTicketNotFound    = errors.New("ticket: ticket not found")
	ErrTicketInactive    = errors.New("ticket: ticket is not active")
	ErrInsufficientStock = errors.New("ticket: insufficient inventory")
	ErrUserNotFound      = errors.New("user: user not found")
	ErrUserExists        = errors.New("user: email already registered")
	ErrForbidden         = errors.New("auth: access denied")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrBadCredentials    = errors.New("auth: invalid email or password")
	ErrAccountLocked     = errors.New("auth: account temporarily locked")
)
