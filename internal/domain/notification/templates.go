package notification

import (
	"fmt"
	"strings"
)

func assignedToRequester(a Assignment) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", a.RequesterName)
	fmt.Fprintf(&b, "Your buddy session request #%d for %s, %s has been matched with %s.\n",
		a.RequestID, a.PreferredDate, a.TimeSlot, a.BuddyName)
	if a.PaymentRequired {
		b.WriteString("Please complete the payment to continue to the session guidelines.\n")
	} else {
		b.WriteString("Please read and accept the session guidelines to get your scheduling link.\n")
	}
	return Message{
		Type:    TypeRequestAssigned,
		To:      a.RequesterEmail,
		Subject: "Your buddy session request was matched",
		Body:    b.String(),
		Data:    map[string]any{"buddy_request_id": a.RequestID},
	}
}

func assignedToBuddy(a Assignment) Message {
	return Message{
		Type:    TypeBuddyAssigned,
		To:      a.BuddyEmail,
		Subject: "New buddy session assigned",
		Body: fmt.Sprintf("Hi %s,\n\nYou have been assigned request #%d from %s for %s, %s.\n",
			a.BuddyName, a.RequestID, a.RequesterName, a.PreferredDate, a.TimeSlot),
		Data: map[string]any{"buddy_request_id": a.RequestID},
	}
}

func cancelledToRequester(c Cancellation) Message {
	body := fmt.Sprintf("Hi %s,\n\nYour buddy session request #%d has been cancelled.\n", c.RequesterName, c.RequestID)
	if c.Reason != "" {
		body += "Reason: " + c.Reason + "\n"
	}
	return Message{
		Type:    TypeRequestCancelled,
		To:      c.RequesterEmail,
		Subject: "Your buddy session request was cancelled",
		Body:    body,
		Data:    map[string]any{"buddy_request_id": c.RequestID},
	}
}

func cancelledToBuddy(c Cancellation) Message {
	return Message{
		Type:    TypeRequestCancelled,
		To:      c.BuddyEmail,
		Subject: "Buddy session cancelled",
		Body:    fmt.Sprintf("Request #%d assigned to you has been cancelled.\n", c.RequestID),
		Data:    map[string]any{"buddy_request_id": c.RequestID},
	}
}

func completedToRequester(c Completion) Message {
	return Message{
		Type:    TypeRequestCompleted,
		To:      c.RequesterEmail,
		Subject: "Thanks for talking to a buddy",
		Body:    fmt.Sprintf("Hi %s,\n\nYour buddy session #%d is marked as completed.\n", c.RequesterName, c.RequestID),
		Data:    map[string]any{"buddy_request_id": c.RequestID},
	}
}

func paymentReceipt(p PaymentReceipt) Message {
	return Message{
		Type:    TypePaymentCompleted,
		To:      p.RequesterEmail,
		Subject: "Payment received for your buddy session",
		Body: fmt.Sprintf("Hi %s,\n\nWe received %s for request #%d (order %s).\nAccept the session guidelines to book your time: %s\n",
			p.RequesterName, FormatAmount(p.Amount, p.Currency), p.RequestID, p.OrderID, p.CalendlyLink),
		Data: map[string]any{"buddy_request_id": p.RequestID, "order_id": p.OrderID},
	}
}

func FormatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%d %s", amount, currency)
}
