// Package api holds the JSON request and response bodies of the HTTP API.
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Error is the body of every non-2xx response.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Wallet struct {
	UserID    string          `json:"user_id"`
	Main      decimal.Decimal `json:"main"`
	Cashback  decimal.Decimal `json:"cashback"`
	Referral  decimal.Decimal `json:"referral"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AmountRequest is the body of the credit and debit endpoints.
type AmountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Bucket      string          `json:"bucket"`
	Description string          `json:"description"`
	Reference   *string         `json:"reference,omitempty"`
}

type Balance struct {
	UserID  string          `json:"user_id"`
	Bucket  string          `json:"bucket"`
	Balance decimal.Decimal `json:"balance"`
}

type TransferRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

type LedgerEntry struct {
	Reference     string          `json:"reference"`
	Direction     string          `json:"direction"`
	Bucket        string          `json:"bucket"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListParams defines parameters for the list endpoints.
type ListParams struct {
	Limit *int32 `form:"limit,omitempty" json:"limit,omitempty"`
}

type NewTransaction struct {
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Details   json.RawMessage `json:"details"`
	RequestID string          `json:"request_id,omitempty"`
}

type Transaction struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Type              string          `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Details           json.RawMessage `json:"details,omitempty"`
	RequestID         string          `json:"request_id,omitempty"`
	Status            string          `json:"status"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type NewPayment struct {
	TxRef  string          `json:"tx_ref"`
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type Payment struct {
	TxRef      string          `json:"tx_ref"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Provider   string          `json:"provider"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// VerifyPaymentRequest optionally names the provider's transaction id, which
// is verified instead of the tx_ref in the path.
type VerifyPaymentRequest struct {
	TransactionID string `json:"transaction_id,omitempty"`
}

type VerifyResult struct {
	Success        bool     `json:"success"`
	AlreadySettled bool     `json:"already_settled"`
	Payment        *Payment `json:"payment,omitempty"`
}

// FlutterwaveWebhook is the charge.completed event Flutterwave posts.
type FlutterwaveWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID     json.Number     `json:"id"`
		TxRef  string          `json:"tx_ref"`
		Status string          `json:"status"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"data"`
}
