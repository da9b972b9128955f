package buddyrequest

import (
	"time"

	"buddydesk/internal/domain/buddy"
)

// CreateBuddyRequestRequest is the public submission body.
type CreateBuddyRequestRequest struct {
	Name              string            `json:"name" validate:"required,min=2,max=120"`
	Email             string            `json:"email" validate:"required,email,max=255"`
	Phone             *string           `json:"phone" validate:"omitempty,max=32"`
	RequestType       RequestType       `json:"type" validate:"required,oneof=FRIENDLY DETAILED"`
	CommunicationMode CommunicationMode `json:"mode" validate:"required,oneof=CHAT CALL VIDEO"`
	SessionDuration   *int              `json:"duration" validate:"omitempty,oneof=30 60"`
	PreferredDate     string            `json:"preferredDate" validate:"required,isodate"`
	TimeSlot          TimeSlot          `json:"timeSlot" validate:"required,timeslot"`
	Message           string            `json:"message" validate:"required,max=4000"`
	ExtraInfo         *string           `json:"extraInfo" validate:"omitempty,max=4000"`
}

type CreateBuddyRequestResponse struct {
	RequestID         int64  `json:"requestId"`
	Status            Status `json:"status"`
	BuddyName         string `json:"buddyName"`
	BuddyCalendlyLink string `json:"buddyCalendlyLink"`
	PaymentRequired   bool   `json:"paymentRequired"`
}

// UpdateRequestInput is the admin override body. Both fields are optional.
type UpdateRequestInput struct {
	Status          *Status `json:"status"`
	AssignedBuddyID *int64  `json:"assignedBuddyId"`
	Reason          *string `json:"reason"`
}

type RequesterCancelRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type AcknowledgeGuidelinesRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type GuidelinesResult struct {
	RequestID   int64     `json:"requestId"`
	CalendlyURL string    `json:"calendlyUrl"`
	AcceptedAt  time.Time `json:"acceptedAt"`
}

// PaymentInfo is the payment summary shown with a request.
type PaymentInfo struct {
	Status   string     `json:"status"`
	OrderID  string     `json:"orderId"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Attempt  int        `json:"attempt"`
	PaidAt   *time.Time `json:"paidAt,omitempty"`
}

// PaymentCompleted is the payment status that funds a paid session.
const PaymentCompleted = "COMPLETED"

// RequestListItem is a request row with its buddy name resolved.
type RequestListItem struct {
	BuddyRequest
	BuddyName *string `json:"buddyName,omitempty"`
}

// RequestDetail is the admin single-request view.
type RequestDetail struct {
	BuddyRequest
	Buddy   *buddy.Buddy `json:"buddy,omitempty"`
	Payment *PaymentInfo `json:"payment,omitempty"`
}

type SlotAvailability struct {
	TimeSlot         TimeSlot `json:"timeSlot"`
	AvailableBuddies int64    `json:"availableBuddies"`
	Available        bool     `json:"available"`
}

type AvailabilityResponse struct {
	Date  string             `json:"date"`
	Slots []SlotAvailability `json:"slots"`
}

// PriceEntry is one row of the paid session price table.
type PriceEntry struct {
	Mode     CommunicationMode `json:"mode"`
	Duration int               `json:"duration"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
}

type OptionsResponse struct {
	TimeSlots        []TimeSlot                          `json:"timeSlots"`
	Modes            map[RequestType][]CommunicationMode `json:"modes"`
	SessionDurations []int                               `json:"sessionDurations"`
	Prices           []PriceEntry                        `json:"prices"`
}
