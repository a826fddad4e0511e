package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/domain/shared/money"
)

var (
	ErrDeclined    = errors.New("payments: declined by provider")
	ErrUnavailable = errors.New("payments: provider unavailable")
)

// Gateway talks to the payment provider over HTTP. Captures are keyed by
// reference and attempt, refunds by capture and amount, so a charge made after a
// compensating refund is never replayed from the earlier one.
type Gateway struct {
	BaseURL string
	Client  *http.Client
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: timeout}}
}

type moneyRequest struct {
	Reference string `json:"reference"`
	CaptureID string `json:"capture_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type captureResponse struct {
	CaptureID string `json:"capture_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *Gateway) Capture(ctx context.Context, reference, attempt string, amount money.Money) (string, error) {
	if attempt == "" {
		return "", fmt.Errorf("%w: capture attempt is required", ErrDeclined)
	}
	var out captureResponse
	body := moneyRequest{Reference: reference, Amount: amount.Amount, Currency: amount.Currency}
	if err := g.post(ctx, "/captures", "capture:"+reference+":"+attempt, body, &out); err != nil {
		return "", err
	}
	if out.CaptureID == "" {
		return "", fmt.Errorf("%w: empty capture id", ErrUnavailable)
	}
	return out.CaptureID, nil
}

func (g *Gateway) Refund(ctx context.Context, reference, captureID string, amount money.Money) error {
	if captureID == "" {
		return fmt.Errorf("%w: refund of %s names no capture", ErrDeclined, reference)
	}
	body := moneyRequest{Reference: reference, CaptureID: captureID, Amount: amount.Amount, Currency: amount.Currency}
	key := fmt.Sprintf("refund:%s:%d", captureID, amount.Amount)
	return g.post(ctx, "/refunds", key, body, nil)
}

func (g *Gateway) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := g.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrDeclined, e.Error)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (g *Gateway) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

var _ policies.PaymentsPort = (*Gateway)(nil)
