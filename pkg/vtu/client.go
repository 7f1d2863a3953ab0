package vtu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
)

// Client is an HTTP vendor speaking the common Nigerian VTU aggregator
// protocol: POST /api/pay with a serviceID per product and code "000" on
// success.
type Client struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey, secretKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

var _ Vendor = (*Client)(nil)

type payRequest struct {
	RequestID     string `json:"request_id"`
	ServiceID     string `json:"serviceID"`
	BillersCode   string `json:"billersCode,omitempty"`
	VariationCode string `json:"variation_code,omitempty"`
	Amount        string `json:"amount"`
	Phone         string `json:"phone,omitempty"`
}

type payResponse struct {
	Code                string `json:"code"`
	ResponseDescription string `json:"response_description"`
	RequestID           string `json:"requestId"`
	Content             struct {
		Transactions struct {
			Status        string `json:"status"`
			TransactionID string `json:"transactionId"`
		} `json:"transactions"`
	} `json:"content"`
}

const codeSuccess = "000"

func (c *Client) Purchase(ctx context.Context, req Request) (*Result, error) {
	payload, err := buildPayload(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vendor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/pay", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.APIKey)
	httpReq.Header.Set("secret-key", c.SecretKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call vendor: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("vendor returned HTTP %d", resp.StatusCode)
	}

	var out payResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode vendor response (HTTP %d): %w", resp.StatusCode, err)
	}

	status := strings.ToLower(out.Content.Transactions.Status)
	return &Result{
		Success:   out.Code == codeSuccess && status != "failed",
		Reference: out.Content.Transactions.TransactionID,
		Message:   out.ResponseDescription,
		Raw:       json.RawMessage(raw),
	}, nil
}

func buildPayload(req Request) (*payRequest, error) {
	p := &payRequest{RequestID: req.RequestID, Amount: req.Amount.StringFixed(2)}

	switch d := req.Details.(type) {
	case models.AirtimeDetails:
		p.ServiceID = strings.ToLower(d.Network)
		p.Phone = d.Phone
	case models.DataDetails:
		p.ServiceID = strings.ToLower(d.Network) + "-data"
		p.BillersCode = d.Phone
		p.VariationCode = d.PlanID
		p.Phone = d.Phone
	case models.CableDetails:
		p.ServiceID = strings.ToLower(d.Provider)
		p.BillersCode = d.SmartcardNumber
	case models.ElectricityDetails:
		p.ServiceID = strings.ToLower(d.Provider)
		p.BillersCode = d.MeterNumber
		p.VariationCode = "prepaid"
	default:
		return nil, fmt.Errorf("unsupported service details %T", req.Details)
	}
	return p, nil
}
