package gateway

import (
	"errors"
	"strings"

	"ticket-checkout/utils"
)

// Category is the user-facing classification of a gateway failure.
type Category string

const (
	CategoryDeclined          Category = "declined"
	CategoryInvalidCard       Category = "invalid_card"
	CategoryExpiredCard       Category = "expired_card"
	CategoryInvalidCVC        Category = "invalid_cvc"
	CategoryLostOrStolen      Category = "lost_or_stolen"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryRateLimited       Category = "rate_limited"
	CategoryProcessing        Category = "processing_error"
)

var userMessages = map[Category]string{
	CategoryDeclined:          "Your card was declined. Please contact your bank or try a different card.",
	CategoryInvalidCard:       "The card number you entered is invalid. Please check and try again.",
	CategoryExpiredCard:       "Your card has expired. Please use a valid card.",
	CategoryInvalidCVC:        "The security code (CVC) you provided is incorrect.",
	CategoryLostOrStolen:      "This card cannot be used. Please use a different card.",
	CategoryInsufficientFunds: "Your card does not have sufficient funds for this transaction.",
	CategoryRateLimited:       "Too many requests. Please wait a moment and try again.",
	CategoryProcessing:        "Payment processing failed. Please try again later.",
}

// UserMessage is safe to show to the buyer.
func (c Category) UserMessage() string {
	if m, ok := userMessages[c]; ok {
		return m
	}
	return userMessages[CategoryProcessing]
}

// keyword order matters: more specific matches come first.
var keywordCategories = []struct {
	keywords []string
	category Category
}{
	{[]string{"lost_card", "stolen_card", "lost", "stolen"}, CategoryLostOrStolen},
	{[]string{"insufficient_funds", "insufficient funds"}, CategoryInsufficientFunds},
	{[]string{"rate_limit", "too many requests"}, CategoryRateLimited},
	{[]string{"incorrect_cvc", "cvc"}, CategoryInvalidCVC},
	{[]string{"expired_card", "expired"}, CategoryExpiredCard},
	{[]string{"card_declined", "generic_decline", "decline"}, CategoryDeclined},
	{[]string{"invalid_number", "incorrect_number", "invalid_card", "invalid"}, CategoryInvalidCard},
}

// Classify maps an error from a Gateway call to a Category. Transport
// failures, timeouts and an open circuit breaker are processing errors.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		return CategoryProcessing
	}

	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Err != nil {
		return CategoryProcessing
	}
	if gerr.StatusCode == 429 {
		return CategoryRateLimited
	}

	text := strings.ToLower(gerr.DeclineCode + " " + gerr.Code + " " + gerr.Message)
	for _, kc := range keywordCategories {
		for _, kw := range kc.keywords {
			if strings.Contains(text, kw) {
				return kc.category
			}
		}
	}
	return CategoryProcessing
}
