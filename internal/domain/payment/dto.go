package payment

import "buddydesk/internal/domain/buddyrequest"

type CreateOrderRequest struct {
	RequestID int64                          `json:"requestId" validate:"required,gt=0"`
	Email     string                         `json:"email" validate:"required,email"`
	Name      string                         `json:"name" validate:"omitempty,max=120"`
	Mode      buddyrequest.CommunicationMode `json:"mode" validate:"required,oneof=CHAT CALL VIDEO"`
	Duration  int                            `json:"duration" validate:"required,oneof=30 60"`
}

type OrderInfo struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	RequestID int64  `json:"requestId"`
	Attempt   int    `json:"attempt"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required,max=64"`
	PaymentID string `json:"paymentId" validate:"required,max=64"`
	Signature string `json:"signature" validate:"required,max=256"`
}

type VerifyResult struct {
	Verified    bool   `json:"verified"`
	CalendlyURL string `json:"calendlyUrl"`
	RequestID   int64  `json:"requestId"`
}

// PaymentEvent is published when a payment completes.
type PaymentEvent struct {
	RequestID int64  `json:"requestId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}
