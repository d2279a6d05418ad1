package handlers

import (
	"log/slog"
	"net/http"

	"ticket-checkout/internal/services"
	"ticket-checkout/security"

	"github.com/labstack/echo/v5"
)

type AdminHandler struct {
	authService *services.AuthService
}

func NewAdminHandler(authService *services.AuthService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// ResetLockout clears a user's failed login counter and lock.
func (h *AdminHandler) ResetLockout(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return respondWithError(c, http.StatusBadRequest, "Invalid user id")
	}

	if err := h.authService.ResetLockout(c.Request().Context(), userID); err != nil {
		return respondWithStoreError(c, err)
	}

	adminID, _ := security.UserID(c)
	slog.Info("admin reset lockout", "admin_id", adminID, "user_id", userID)

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Lockout reset",
		"user_id": userID,
	})
}
