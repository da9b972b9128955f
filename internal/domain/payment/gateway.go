package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
)

// Gateway payment statuses as reported by the gateway.
const (
	GatewayCaptured   = "captured"
	GatewayFailed     = "failed"
	GatewayAuthorized = "authorized"
)

type OrderRequest struct {
	Amount   int64 // subunits
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// GatewayPayment is the gateway's authoritative view of one payment.
type GatewayPayment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	KeyID() string
}

// RazorpayGateway calls the Razorpay orders and payments APIs.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{client: razorpay.NewClient(keyID, keySecret), keyID: keyID}
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	body, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(map[string]interface{}{
			"amount":   req.Amount,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"notes":    notes,
		}, nil)
	})
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Status:   stringField(body, "status"),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order response without id", ErrGateway)
	}
	return order, nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	body, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &GatewayPayment{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Status:   strings.ToLower(stringField(body, "status")),
	}, nil
}

// callWithContext runs a blocking SDK call and gives up when ctx ends. The SDK
// has no context support, so the call itself is left to finish in the background.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrGatewayTimeout
		}
		return zero, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return zero, fmt.Errorf("%w: %v", ErrGateway, r.err)
		}
		return r.v, nil
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// intField reads a JSON number, which the SDK decodes as float64.
func intField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// SandboxGateway is an in-memory gateway for local development and tests.
// Payments exist only after Capture or Fail is called for an order.
type SandboxGateway struct {
	mu       sync.Mutex
	keyID    string
	orders   map[string]Order
	payments map[string]GatewayPayment
	delay    time.Duration
	calls    int
}

func NewSandboxGateway(keyID string) *SandboxGateway {
	if keyID == "" {
		keyID = "rzp_sandbox"
	}
	return &SandboxGateway{
		keyID:    keyID,
		orders:   map[string]Order{},
		payments: map[string]GatewayPayment{},
	}
}

func (g *SandboxGateway) KeyID() string { return g.keyID }

// SetDelay makes every call block for d before answering.
func (g *SandboxGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// Calls reports how many gateway calls were made.
func (g *SandboxGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *SandboxGateway) wait(ctx context.Context) error {
	g.mu.Lock()
	g.calls++
	d := g.delay
	g.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrGatewayTimeout
		}
		return ctx.Err()
	}
}

func (g *SandboxGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	o := Order{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()
	return &o, nil
}

func (g *SandboxGateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", ErrGateway, paymentID)
	}
	return &p, nil
}

// Capture records a captured payment for the full order amount.
func (g *SandboxGateway) Capture(orderID string) string {
	return g.addPayment(orderID, GatewayCaptured)
}

// Fail records a failed payment attempt for the order.
func (g *SandboxGateway) Fail(orderID string) string {
	return g.addPayment(orderID, GatewayFailed)
}

// Authorize records an authorized but not yet captured payment.
func (g *SandboxGateway) Authorize(orderID string) string {
	return g.addPayment(orderID, GatewayAuthorized)
}

func (g *SandboxGateway) addPayment(orderID, status string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.orders[orderID]
	p := GatewayPayment{
		ID:       "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		OrderID:  orderID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Status:   status,
	}
	g.payments[p.ID] = p
	return p.ID
}
