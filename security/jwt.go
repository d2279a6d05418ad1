package security

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ticket-checkout/internal/status"
	"ticket-checkout/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v5"
)

const (
	contextUserID = "user_id"
	contextEmail  = "email"
	contextRoles  = "roles"
)

type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 access tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (j *JWT) Issue(u *models.User) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)
	claims := Claims{
		Email: u.Email,
		Roles: u.RoleList(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (j *JWT) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", status.ErrInvalidToken, err)
	}
	if _, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad subject", status.ErrInvalidToken)
	}
	return claims, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error":   http.StatusText(http.StatusUnauthorized),
		"message": msg,
	})
}

// RequireAuth rejects requests without a valid bearer token and puts the
// caller's id, email and roles on the context.
func (j *JWT) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return unauthorized(c, "Missing bearer token")
			}

			claims, err := j.Parse(raw)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return unauthorized(c, "Token expired")
				}
				return unauthorized(c, "Invalid token")
			}

			userID, _ := strconv.ParseInt(claims.Subject, 10, 64)
			c.Set(contextUserID, userID)
			c.Set(contextEmail, claims.Email)
			c.Set(contextRoles, claims.Roles)
			return next(c)
		}
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get(contextRoles).([]string)
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{
				"error":   http.StatusText(http.StatusForbidden),
				"message": "Access denied",
			})
		}
	}
}

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(contextUserID).(int64)
	return id, ok
}
