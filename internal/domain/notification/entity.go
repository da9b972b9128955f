package notification

type Type string

const (
	TypeRequestAssigned  Type = "request_assigned"
	TypeBuddyAssigned    Type = "buddy_assigned"
	TypeRequestCancelled Type = "request_cancelled"
	TypeRequestCompleted Type = "request_completed"
	TypePaymentCompleted Type = "payment_completed"
)

// Message is one outbound email. Delivery is handled by a Sender.
type Message struct {
	Type    Type           `json:"type"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
}

type Assignment struct {
	RequestID       int64
	RequesterName   string
	RequesterEmail  string
	BuddyName       string
	BuddyEmail      string
	PreferredDate   string
	TimeSlot        string
	CalendlyLink    string
	PaymentRequired bool
}

type Cancellation struct {
	RequestID      int64
	RequesterName  string
	RequesterEmail string
	BuddyEmail     string
	Reason         string
}

type Completion struct {
	RequestID      int64
	RequesterName  string
	RequesterEmail string
}

type PaymentReceipt struct {
	RequestID      int64
	RequesterName  string
	RequesterEmail string
	OrderID        string
	Amount         int64
	Currency       string
	CalendlyLink   string
}
