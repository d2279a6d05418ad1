package handlers

import (
	"errors"
	"net/http"
	"strings"

	"ticket-checkout/internal/services"
	"ticket-checkout/internal/status"

	"github.com/labstack/echo/v5"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return respondWithError(c, http.StatusBadRequest, "Email and password are required")
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	var lerr *services.LoginError
	switch {
	case errors.As(err, &lerr) && errors.Is(err, status.ErrAccountLocked):
		return c.JSON(http.StatusLocked, map[string]any{
			"error":   http.StatusText(http.StatusLocked),
			"message": "Too many failed login attempts. Please try again later.",
			"lockout": lerr.Lockout,
		})
	case errors.As(err, &lerr):
		body := map[string]any{
			"error":   http.StatusText(http.StatusUnauthorized),
			"message": "Invalid email or password",
		}
		if lerr.RemainingAttempts != nil {
			body["remaining_attempts"] = *lerr.RemainingAttempts
		}
		return c.JSON(http.StatusUnauthorized, body)
	case err != nil:
		return respondWithStoreError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user": map[string]any{
			"id":    res.User.ID,
			"email": res.User.Email,
			"roles": res.User.RoleList(),
		},
	})
}

// LockoutInfo reports the lockout state for an email address.
func (h *AuthHandler) LockoutInfo(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return respondWithError(c, http.StatusBadRequest, "email is required")
	}

	info, err := h.authService.LockoutInfoByEmail(c.Request().Context(), email)
	if err != nil {
		return respondWithStoreError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}
