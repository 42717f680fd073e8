package rest

import "github.com/chilly266futon/orderComposer/internal/domain"

var errorMessages = map[domain.ErrorKind]string{
	domain.ErrorInvalidAmount:   "Enter an amount greater than zero",
	domain.ErrorPriceRequired:   "Enter a limit price",
	domain.ErrorInvalidPrice:    "Price must be greater than zero",
	domain.ErrorPairNotSelected: "Select a trading pair",
	domain.ErrorNetwork:         "Network error, please try again",
	"INSUFFICIENT_BALANCE":      "Insufficient balance",
	"PAIR_UNAVAILABLE":          "This pair is not available right now",
	"AMOUNT_TOO_SMALL":          "Amount is below the minimum order size",
}

const defaultErrorMessage = "Something went wrong"

// ErrorMessage maps an error code to the text shown under the submit button.
func ErrorMessage(code domain.ErrorKind) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return defaultErrorMessage
}
