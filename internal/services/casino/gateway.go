package casino

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payverse/internal/services/paygram"
)

// ChipGateway is the casino bridge: it moves chips on the casino side in
// exchange for tokens held on the platform ledger. Both calls are
// value-moving, so implementations classify failures the same way the
// wallet provider client does.
type ChipGateway interface {
	// CreditChips adds chips to the player's casino balance (buy leg).
	CreditChips(ctx context.Context, req ChipRequest) (*ChipReceipt, error)
	// DebitChips removes chips from the player's casino balance (sell leg).
	DebitChips(ctx context.Context, req ChipRequest) (*ChipReceipt, error)
}

// ChipRequest carries one chip movement. Nonce makes retries of the same
// logical movement idempotent on the casino side.
type ChipRequest struct {
	CasinoClientID string  `json:"clientId"`
	Amount         float64 `json:"amount"`
	Nonce          string  `json:"nonce"`
}

// ChipReceipt is the bridge's acknowledgement of an applied movement.
type ChipReceipt struct {
	TransactionID string  `json:"transactionId"`
	Balance       float64 `json:"balance"`
}

const defaultBridgeTimeout = 15 * time.Second

// BridgeConfig holds client settings for the casino bridge API.
type BridgeConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// BridgeClient is the HTTP implementation of ChipGateway.
type BridgeClient struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewBridgeClient creates a new casino bridge client.
func NewBridgeClient(cfg BridgeConfig) *BridgeClient {
	if cfg.BaseURL == "" {
		panic("casino bridge base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBridgeTimeout
	}
	return &BridgeClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: timeout},
	}
}

type bridgeEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *BridgeClient) CreditChips(ctx context.Context, req ChipRequest) (*ChipReceipt, error) {
	var receipt ChipReceipt
	if err := c.call(ctx, "/chips/credit", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *BridgeClient) DebitChips(ctx context.Context, req ChipRequest) (*ChipReceipt, error) {
	var receipt ChipReceipt
	if err := c.call(ctx, "/chips/debit", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// call posts a JSON body and decodes the bridge envelope. Every bridge call
// moves value, so transport and parse failures surface as ambiguous.
func (c *BridgeClient) call(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paygram.ErrAmbiguous, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The bridge rejects before applying, so a clean HTTP error is
		// retryable rather than ambiguous.
		return &paygram.UnavailableError{Cause: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)}
	}

	var env bridgeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: unparseable response: %v", paygram.ErrAmbiguous, err)
	}

	if !env.Success {
		return &paygram.RejectedError{Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: unparseable payload: %v", paygram.ErrAmbiguous, err)
		}
	}
	return nil
}
