// Package paystack verifies charges against the Paystack API.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chris/vtu-ledger/pkg/provider"
	"github.com/shopspring/decimal"
)

const (
	Name           = "paystack"
	defaultBaseURL = "https://api.paystack.co"
)

// Paystack reports amounts in the currency's subunit.
var subunits = decimal.NewFromInt(100)

type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

func New(baseURL, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

var _ provider.Verifier = (*Client)(nil)

func (c *Client) Name() string { return Name }

func (c *Client) VerifyByID(ctx context.Context, id string) (*provider.Verification, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/transaction/%s", c.BaseURL, url.PathEscape(id)))
}

func (c *Client) VerifyByReference(ctx context.Context, txRef string) (*provider.Verification, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/transaction/verify/%s", c.BaseURL, url.PathEscape(txRef)))
}

type transactionResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		ID              int64           `json:"id"`
		Reference       string          `json:"reference"`
		Status          string          `json:"status"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		GatewayResponse string          `json:"gateway_response"`
	} `json:"data"`
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*provider.Verification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call paystack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}

	var out transactionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode paystack response (HTTP %d): %w", resp.StatusCode, err)
	}

	msg := strings.ToLower(out.Message)
	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode < 500 && strings.Contains(msg, "not found")) {
		return nil, fmt.Errorf("%w: %s", provider.ErrReferenceNotFound, out.Message)
	}
	if resp.StatusCode != http.StatusOK || !out.Status || out.Data == nil {
		return nil, fmt.Errorf("paystack verify failed (HTTP %d): %s", resp.StatusCode, out.Message)
	}

	status := strings.ToLower(out.Data.Status)
	if status == "success" {
		status = provider.StatusSuccessful
	}
	return &provider.Verification{
		ID:                strconv.FormatInt(out.Data.ID, 10),
		TxRef:             out.Data.Reference,
		Status:            status,
		Amount:            out.Data.Amount.Div(subunits),
		Currency:          out.Data.Currency,
		ProcessorResponse: out.Data.GatewayResponse,
		Raw:               json.RawMessage(body),
	}, nil
}
