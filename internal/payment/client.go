package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/flow"
)

// Config holds payment gateway configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the payment gateway's REST API. It implements
// flow.Processor for the contribution flow's submit step.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a payment gateway client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type chargeRequest struct {
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	PaymentMethodID string `json:"payment_method_id"`
	PayerName       string `json:"payer_name,omitempty"`
	PayerEmail      string `json:"payer_email,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Error       struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ProcessPayment charges the order. Failure modes map to the three
// conditions the flow layer distinguishes for user messaging: declined,
// requires-authentication and network.
func (c *Client) ProcessPayment(ctx context.Context, order flow.PaymentOrder) (flow.PaymentReceipt, error) {
	body, err := json.Marshal(chargeRequest{
		AmountCents:     order.TotalCents,
		Currency:        order.Currency,
		PaymentMethodID: order.PaymentMethodID,
		PayerName:       order.PayerName,
		PayerEmail:      order.PayerEmail,
		Quantity:        order.Quantity,
	})
	if err != nil {
		return flow.PaymentReceipt{}, fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return flow.PaymentReceipt{}, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Payment gateway request failed", zap.Error(err))
		return flow.PaymentReceipt{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var charge chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		c.logger.Error("Failed to decode gateway response",
			zap.Int("status", resp.StatusCode), zap.Error(err))
		return flow.PaymentReceipt{}, fmt.Errorf("%w: invalid response", ErrNetwork)
	}

	switch {
	case resp.StatusCode == http.StatusOK && charge.Status == "succeeded":
		c.logger.Info("Payment processed",
			zap.String("transaction_id", charge.ID),
			zap.Int64("amount_cents", order.TotalCents),
			zap.String("currency", order.Currency))
		return flow.PaymentReceipt{TransactionID: charge.ID}, nil

	case charge.Status == "requires_action" || charge.Error.Code == "authentication_required":
		return flow.PaymentReceipt{}, &AuthRequiredError{RedirectURL: charge.RedirectURL}

	case resp.StatusCode == http.StatusPaymentRequired || charge.Error.Code == "card_declined":
		c.logger.Warn("Payment declined",
			zap.String("code", charge.Error.Code),
			zap.String("message", charge.Error.Message))
		return flow.PaymentReceipt{}, fmt.Errorf("%w: %s", ErrDeclined, charge.Error.Message)

	default:
		c.logger.Error("Unexpected gateway response",
			zap.Int("status", resp.StatusCode),
			zap.String("code", charge.Error.Code))
		return flow.PaymentReceipt{}, fmt.Errorf("%w: gateway status %d", ErrNetwork, resp.StatusCode)
	}
}
