package payment

import "errors"

var (
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrGateway            = errors.New("payment gateway error")
	ErrAlreadyPaid        = errors.New("request is already paid")
	ErrPaymentNotRequired = errors.New("request does not need a payment")
	ErrRequestMismatch    = errors.New("order details do not match the request")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentNotCaptured = errors.New("payment is not captured yet")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrPaymentMismatch    = errors.New("gateway payment does not match the order")
	ErrUnknownPrice       = errors.New("no price for mode and duration")
	ErrRequestCancelled   = errors.New("request was cancelled before the payment completed")
)
