package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ticket-checkout/internal/status"

	"github.com/labstack/echo/v5"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondWithError(c echo.Context, code int, message string) error {
	return c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}

// respondWithStoreError maps sentinel errors to statuses. Anything else is
// logged and reported as a 500 without detail.
func respondWithStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, status.ErrPaymentNotFound):
		return respondWithError(c, http.StatusNotFound, "Payment not found")
	case errors.Is(err, status.ErrTicketNotFound):
		return respondWithError(c, http.StatusNotFound, "Ticket not found")
	case errors.Is(err, status.ErrUserNotFound):
		return respondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, status.ErrForbidden):
		return respondWithError(c, http.StatusForbidden, "Access denied")
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
	return respondWithError(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

// text accepts a JSON string or number, so expiry_month may arrive as 12
// or "12".
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = text(n.String())
	return nil
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.PathParam(name), 10, 64)
	return id, err == nil && id > 0
}
