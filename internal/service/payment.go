package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aquapure/waterbot/internal/models"
)

// Loyalty pricing: one point is worth one minor currency unit, and delivered
// orders earn back 1% of their total.
const loyaltyEarnPercent = 1

// EarnedPoints returns the loyalty credit for a completed order.
func EarnedPoints(total int64) int64 {
	return total * loyaltyEarnPercent / 100
}

// Payments is the default PaymentGateway. Cash settles on delivery, loyalty
// debits the ledger, card goes through the provider's charge endpoint.
type Payments struct {
	loyalty LoyaltyLedger
	cards   CardCharger
}

// CardCharger captures and reverses card payments with the external provider.
type CardCharger interface {
	Charge(ctx context.Context, orderNumber string, amount int64) error
	Refund(ctx context.Context, orderNumber string, amount int64) error
}

// NewPayments builds the PaymentGateway. cards may be nil when card payments
// are disabled in config.
func NewPayments(loyalty LoyaltyLedger, cards CardCharger) *Payments {
	return &Payments{loyalty: loyalty, cards: cards}
}

// Capture settles payment for a pending order according to its method.
func (p *Payments) Capture(ctx context.Context, o *models.Order) error {
	switch o.PaymentMethod {
	case models.PayCash:
		// Collected by the courier on delivery.
		return nil
	case models.PayLoyalty:
		err := p.loyalty.Debit(ctx, o.UserID, &o.ID, o.TotalAmount, "order "+o.Number)
		if err != nil {
			return err
		}
		return nil
	case models.PayCard:
		if p.cards == nil {
			return &PaymentError{Method: string(o.PaymentMethod), Reason: "card payments disabled"}
		}
		if err := p.cards.Charge(ctx, o.Number, o.TotalAmount); err != nil {
			return &PaymentError{Method: string(o.PaymentMethod), Reason: "charge declined", Cause: err}
		}
		return nil
	default:
		return Validatef("payment_method", "unknown method %q", o.PaymentMethod)
	}
}

// Refund reverses a captured payment after its order is abandoned or
// cancelled. Cash never left the customer, loyalty is credited back, card
// goes through the provider's refund endpoint.
func (p *Payments) Refund(ctx context.Context, o *models.Order) error {
	switch o.PaymentMethod {
	case models.PayCash:
		return nil
	case models.PayLoyalty:
		return p.loyalty.Credit(ctx, o.UserID, &o.ID, o.TotalAmount, "refund "+o.Number)
	case models.PayCard:
		if p.cards == nil {
			return &PaymentError{Method: string(o.PaymentMethod), Reason: "card payments disabled"}
		}
		if err := p.cards.Refund(ctx, o.Number, o.TotalAmount); err != nil {
			return &PaymentError{Method: string(o.PaymentMethod), Reason: "refund failed", Cause: err}
		}
		return nil
	default:
		return Validatef("payment_method", "unknown method %q", o.PaymentMethod)
	}
}

// HTTPCardCharger talks to the card provider's REST API. endpoint is the
// provider base URL; charges and refunds post to /charge and /refund under it.
type HTTPCardCharger struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPCardCharger builds a charger. Pass a client with retry transport so
// transient provider errors are absorbed.
func NewHTTPCardCharger(client *http.Client, endpoint, apiKey string) *HTTPCardCharger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCardCharger{client: client, endpoint: endpoint, apiKey: apiKey}
}

type chargeRequest struct {
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
}

type chargeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Charge posts the charge and treats anything but an approved response as a
// decline.
func (c *HTTPCardCharger) Charge(ctx context.Context, orderNumber string, amount int64) error {
	return c.post(ctx, "/charge", orderNumber, amount)
}

// Refund posts the reversal for a previously charged order.
func (c *HTTPCardCharger) Refund(ctx context.Context, orderNumber string, amount int64) error {
	return c.post(ctx, "/refund", orderNumber, amount)
}

func (c *HTTPCardCharger) post(ctx context.Context, path, orderNumber string, amount int64) error {
	op := strings.TrimPrefix(path, "/")
	body, err := json.Marshal(chargeRequest{OrderNumber: orderNumber, Amount: amount})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	url := strings.TrimRight(c.endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request: provider returned %s", op, resp.Status)
	}
	var out chargeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	if out.Status != "approved" {
		return fmt.Errorf("%s declined: %s", op, out.Error)
	}
	return nil
}
