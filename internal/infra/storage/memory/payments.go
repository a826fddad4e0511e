package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/domain/shared/money"
)

var ErrPaymentDeclined = errors.New("memory: payment declined")

// Capture is a charge held by the in-memory gateway.
type Capture struct {
	ID        string
	Reference string
	Amount    money.Money
	Refunded  money.Money
}

// PaymentsGateway settles payments in process. FailCapture and FailRefund
// make the next calls for a reference fail.
type PaymentsGateway struct {
	mu          sync.Mutex
	captures    map[string]*Capture
	attempts    map[string]string
	latest      map[string]string
	failCapture map[string]bool
	failRefund  map[string]bool
}

func NewPaymentsGateway() *PaymentsGateway {
	return &PaymentsGateway{
		captures:    make(map[string]*Capture),
		attempts:    make(map[string]string),
		latest:      make(map[string]string),
		failCapture: make(map[string]bool),
		failRefund:  make(map[string]bool),
	}
}

// Capture charges amount once per reference and attempt; repeating an attempt
// returns its capture id.
func (g *PaymentsGateway) Capture(ctx context.Context, reference, attempt string, amount money.Money) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCapture[reference] {
		return "", fmt.Errorf("%w: capture %s", ErrPaymentDeclined, reference)
	}
	key := reference + ":" + attempt
	if id, ok := g.attempts[key]; ok {
		return id, nil
	}
	c := &Capture{ID: "cap_" + uuid.NewString(), Reference: reference, Amount: amount, Refunded: money.Zero(amount.Currency)}
	g.captures[c.ID] = c
	g.attempts[key] = c.ID
	g.latest[reference] = c.ID
	return c.ID, nil
}

func (g *PaymentsGateway) Refund(ctx context.Context, reference, captureID string, amount money.Money) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefund[reference] {
		return fmt.Errorf("%w: refund %s", ErrPaymentDeclined, reference)
	}
	c, ok := g.captures[captureID]
	if !ok || c.Reference != reference {
		return fmt.Errorf("%w: no capture %s for %s", ErrPaymentDeclined, captureID, reference)
	}
	refunded, err := c.Refunded.Add(amount)
	if err != nil {
		return err
	}
	if refunded.Amount > c.Amount.Amount {
		return fmt.Errorf("%w: refund exceeds capture %s", ErrPaymentDeclined, captureID)
	}
	c.Refunded = refunded
	return nil
}

// Net is what the gateway holds for reference across all its captures.
func (g *PaymentsGateway) Net(reference string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var net int64
	for _, c := range g.captures {
		if c.Reference == reference {
			net += c.Amount.Amount - c.Refunded.Amount
		}
	}
	return net
}

func (g *PaymentsGateway) FailCapture(reference string, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCapture[reference] = fail
}

func (g *PaymentsGateway) FailRefund(reference string, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRefund[reference] = fail
}

// Captured returns a copy of the latest capture for reference.
func (g *PaymentsGateway) Captured(reference string) (Capture, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.captures[g.latest[reference]]
	if !ok {
		return Capture{}, false
	}
	return *c, true
}

var _ policies.PaymentsPort = (*PaymentsGateway)(nil)
