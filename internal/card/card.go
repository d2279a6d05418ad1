// Package card validates payment card data before it is sent to the gateway.
package card

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Brand string

const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandAmex       Brand = "AMEX"
	BrandDiscover   Brand = "DISCOVER"
	BrandJCB        Brand = "JCB"
	BrandUnknown    Brand = "UNKNOWN"
)

// Data is the raw card input as submitted by the buyer.
type Data struct {
	Number      string `json:"card_number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVC         string `json:"cvv"`
	HolderName  string `json:"holder_name"`
}

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("card: %s: %s", e.Field, e.Message)
}

var cvcPattern = regexp.MustCompile(`^\d{3,4}$`)

// Validate checks the card against the current time.
func Validate(d Data) error {
	return ValidateAt(d, time.Now())
}

// ValidateAt checks required fields, number, expiry and CVC, in that order.
// It returns nil or a *ValidationError.
func ValidateAt(d Data, now time.Time) error {
	required := []struct {
		field string
		label string
		value string
	}{
		{"card_number", "card number", d.Number},
		{"expiry_month", "expiry month", d.ExpiryMonth},
		{"expiry_year", "expiry year", d.ExpiryYear},
		{"cvv", "security code (CVC)", d.CVC},
		{"holder_name", "cardholder name", d.HolderName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "Please enter your " + r.label}
		}
	}

	if !ValidNumber(d.Number) {
		return &ValidationError{Field: "card_number", Message: "The card number you entered is invalid. Please check and try again."}
	}

	if err := validateExpiry(d.ExpiryMonth, d.ExpiryYear, now); err != nil {
		return err
	}

	if !cvcPattern.MatchString(strings.TrimSpace(d.CVC)) {
		return &ValidationError{Field: "cvv", Message: "The security code (CVC) must be 3 or 4 digits."}
	}

	return nil
}

// ValidNumber reports whether number has 13 to 19 digits and passes the
// Luhn checksum. Separators are ignored.
func ValidNumber(number string) bool {
	digits := Digits(number)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return luhn(digits)
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

func validateExpiry(monthStr, yearStr string, now time.Time) error {
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil || month < 1 || month > 12 {
		return &ValidationError{Field: "expiry_month", Message: "The expiry month must be between 01 and 12."}
	}

	yearStr = strings.TrimSpace(yearStr)
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 0 {
		return &ValidationError{Field: "expiry_year", Message: "The expiry year is invalid."}
	}
	if len(yearStr) <= 2 {
		year += 2000
	}

	cy, cm := now.Year(), int(now.Month())
	if year < cy || (year == cy && month < cm) {
		return &ValidationError{Field: "expiry_year", Message: "Your card has expired. Please use a valid card."}
	}
	return nil
}

// Digits strips everything but decimal digits from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectBrand maps the number's issuer prefix to a brand.
func DetectBrand(number string) Brand {
	n := Digits(number)
	prefix := func(size int) int {
		if len(n) < size {
			return -1
		}
		v, _ := strconv.Atoi(n[:size])
		return v
	}

	switch {
	case strings.HasPrefix(n, "4"):
		return BrandVisa
	case prefix(2) >= 51 && prefix(2) <= 55:
		return BrandMastercard
	case prefix(2) == 34 || prefix(2) == 37:
		return BrandAmex
	case prefix(4) == 6011 || (prefix(2) >= 65 && prefix(2) <= 69):
		return BrandDiscover
	case prefix(4) >= 3528 && prefix(4) <= 3589:
		return BrandJCB
	}
	return BrandUnknown
}

// LastFour returns the last four digits of the number.
func LastFour(number string) string {
	n := Digits(number)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}
