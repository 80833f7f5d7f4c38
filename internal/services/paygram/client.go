package paygram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config holds client settings for the wallet provider API.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client is the HTTP implementation of Gateway against the PayGram API.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewClient creates a new provider client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		panic("paygram base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: timeout},
	}
}

// envelope is the provider's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) UserInfo(ctx context.Context, clientID string) (*UserInfo, error) {
	var info UserInfo
	if err := c.call(ctx, "/UserInfo", map[string]string{"clientId": clientID}, &info, false); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) TransferCredit(ctx context.Context, req TransferRequest) (*TransferReceipt, error) {
	var receipt TransferReceipt
	if err := c.call(ctx, "/TransferCredit", req, &receipt, true); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (*InvoiceReceipt, error) {
	if req.Currency == 0 {
		req.Currency = CurrencyPHPT
	}
	var receipt InvoiceReceipt
	if err := c.call(ctx, "/IssueInvoice", req, &receipt, false); err != nil {
		return nil, err
	}
	if receipt.VoucherCode == "" {
		receipt.VoucherCode = DeriveVoucherCode(receipt.InvoiceCode)
	}
	return &receipt, nil
}

func (c *Client) PayVoucher(ctx context.Context, req PayVoucherRequest) (*PaymentReceipt, error) {
	var receipt PaymentReceipt
	if err := c.call(ctx, "/PayVoucher", req, &receipt, true); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) RedeemInvoice(ctx context.Context, invoiceCode, clientID string) (*RedeemReceipt, error) {
	body := map[string]string{"invoiceCode": invoiceCode, "clientId": clientID}
	var receipt RedeemReceipt
	if err := c.call(ctx, "/RedeemInvoice", body, &receipt, true); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) InvoiceInfo(ctx context.Context, invoiceCode string) (*InvoiceStatus, error) {
	var status InvoiceStatus
	if err := c.call(ctx, "/InvoiceInfo", map[string]string{"invoiceCode": invoiceCode}, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

// call posts a JSON body and decodes the provider envelope into out.
// valueMoving controls failure classification: once a value-moving request
// has been sent, a transport or parse failure is ambiguous rather than a
// plain unavailability, because the provider may have applied it.
func (c *Client) call(ctx context.Context, path string, body, out interface{}, valueMoving bool) error {
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
		if valueMoving {
			return fmt.Errorf("%w: %v", ErrAmbiguous, err)
		}
		return &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnavailableError{Cause: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if valueMoving {
			return fmt.Errorf("%w: unparseable response: %v", ErrAmbiguous, err)
		}
		return &UnavailableError{Cause: fmt.Errorf("unparseable response: %w", err)}
	}

	if !env.Success {
		return &RejectedError{Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			if valueMoving {
				return fmt.Errorf("%w: unparseable payload: %v", ErrAmbiguous, err)
			}
			return &UnavailableError{Cause: fmt.Errorf("unparseable payload: %w", err)}
		}
	}
	return nil
}

// DeriveVoucherCode builds the human-displayable voucher form of a provider
// invoice code.
func DeriveVoucherCode(invoiceCode string) string {
	code := strings.ToUpper(strings.ReplaceAll(invoiceCode, "-", ""))
	if len(code) > 8 {
		code = code[len(code)-8:]
	}
	return "PV-" + code
}
