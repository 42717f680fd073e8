package domain

import "errors"

var (
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidPercentage  = errors.New("quick pick must be one of 25, 50, 75, 100 percent")
	ErrInvalidAmountInput = errors.New("amount input is not a number")
	ErrTransport          = errors.New("request did not complete")
	ErrSessionNotFound    = errors.New("session not found")
)

// ErrorKind is the code surfaced through DraftOrder.LastError. Domain codes
// come from the order API verbatim; the ones below are produced locally.
type ErrorKind string

const (
	ErrorNone ErrorKind = ""

	// validation
	ErrorInvalidAmount   ErrorKind = "INVALID_AMOUNT"
	ErrorPriceRequired   ErrorKind = "PRICE_REQUIRED"
	ErrorInvalidPrice    ErrorKind = "INVALID_PRICE"
	ErrorPairNotSelected ErrorKind = "PAIR_NOT_SELECTED"

	// transport
	ErrorNetwork ErrorKind = "NETWORK_ERROR"
)

func (k ErrorKind) IsValidation() bool {
	switch k {
	case ErrorInvalidAmount, ErrorPriceRequired, ErrorInvalidPrice, ErrorPairNotSelected:
		return true
	default:
		return false
	}
}

func (k ErrorKind) IsTransport() bool {
	return k == ErrorNetwork
}

// IsDomain reports whether the code was returned by the order API.
func (k ErrorKind) IsDomain() bool {
	return k != ErrorNone && !k.IsValidation() && !k.IsTransport()
}
