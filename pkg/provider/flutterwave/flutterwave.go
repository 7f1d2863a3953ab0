// Package flutterwave verifies charges against the Flutterwave v3 API.
package flutterwave

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
	Name           = "flutterwave"
	defaultBaseURL = "https://api.flutterwave.com"
)

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

// VerifyByID calls GET /v3/transactions/{id}/verify.
func (c *Client) VerifyByID(ctx context.Context, id string) (*provider.Verification, error) {
	return c.verify(ctx, fmt.Sprintf("%s/v3/transactions/%s/verify", c.BaseURL, url.PathEscape(id)))
}

// VerifyByReference calls GET /v3/transactions/verify_by_reference?tx_ref=.
func (c *Client) VerifyByReference(ctx context.Context, txRef string) (*provider.Verification, error) {
	q := url.Values{"tx_ref": []string{txRef}}
	return c.verify(ctx, fmt.Sprintf("%s/v3/transactions/verify_by_reference?%s", c.BaseURL, q.Encode()))
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		ID                int64           `json:"id"`
		TxRef             string          `json:"tx_ref"`
		Status            string          `json:"status"`
		Amount            decimal.Decimal `json:"amount"`
		Currency          string          `json:"currency"`
		ProcessorResponse string          `json:"processor_response"`
	} `json:"data"`
}

func (c *Client) verify(ctx context.Context, endpoint string) (*provider.Verification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call flutterwave: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read flutterwave response: %w", err)
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode < 500 && notFound(out.Message)) {
		return nil, fmt.Errorf("%w: %s", provider.ErrReferenceNotFound, out.Message)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "success" || out.Data == nil {
		return nil, fmt.Errorf("flutterwave verify failed (HTTP %d): %s", resp.StatusCode, out.Message)
	}

	return &provider.Verification{
		ID:                strconv.FormatInt(out.Data.ID, 10),
		TxRef:             out.Data.TxRef,
		Status:            strings.ToLower(out.Data.Status),
		Amount:            out.Data.Amount,
		Currency:          out.Data.Currency,
		ProcessorResponse: out.Data.ProcessorResponse,
		Raw:               json.RawMessage(body),
	}, nil
}

func notFound(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "no transaction") || strings.Contains(m, "not found") || strings.Contains(m, "invalid transaction")
}
