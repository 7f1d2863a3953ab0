package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names one of the three balances held by a wallet.
type Bucket string

const (
	BucketMain     Bucket = "main"
	BucketCashback Bucket = "cashback"
	BucketReferral Bucket = "referral"
)

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketMain, BucketCashback, BucketReferral:
		return true
	}
	return false
}

// Direction is the side of a ledger entry.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// EntryStatusSuccess is the only status a committed ledger entry carries.
const EntryStatusSuccess = "success"

// Wallet is the per-user store of value.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Main      decimal.Decimal `json:"main_balance"`
	Cashback  decimal.Decimal `json:"cashback_balance"`
	Referral  decimal.Decimal `json:"referral_balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet returns an empty wallet at version zero.
func NewWallet(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Main:      decimal.Zero,
		Cashback:  decimal.Zero,
		Referral:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Balance returns the balance of the given bucket.
func (w *Wallet) Balance(b Bucket) decimal.Decimal {
	switch b {
	case BucketCashback:
		return w.Cashback
	case BucketReferral:
		return w.Referral
	default:
		return w.Main
	}
}

// SetBalance overwrites the balance of the given bucket.
func (w *Wallet) SetBalance(b Bucket, v decimal.Decimal) {
	switch b {
	case BucketCashback:
		w.Cashback = v
	case BucketReferral:
		w.Referral = v
	default:
		w.Main = v
	}
}

// LedgerEntry is an immutable record of a single balance change.
type LedgerEntry struct {
	UserID        string          `json:"user_id"`
	Direction     Direction       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Bucket        Bucket          `json:"bucket"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TransactionStatus defines the possible states of a purchase.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction is a VTU purchase.
type Transaction struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Type              TransactionType   `json:"type"`
	Amount            decimal.Decimal   `json:"amount"`
	Details           ServiceDetails    `json:"-"`
	RequestID         string            `json:"request_id,omitempty"`
	Status            TransactionStatus `json:"status"`
	ProviderReference string            `json:"provider_reference,omitempty"`
	ProviderResponse  string            `json:"provider_response,omitempty"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// PaymentStatus defines the lifecycle of an external deposit.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is an external deposit awaiting or having received settlement.
type Payment struct {
	TxRef            string          `json:"tx_ref"`
	UserID           string          `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           PaymentStatus   `json:"status"`
	Provider         string          `json:"provider"`
	ProviderResponse string          `json:"provider_response,omitempty"`
	VerifiedAt       *time.Time      `json:"verified_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RewardKind selects the post-purchase reward to apply.
type RewardKind string

const (
	RewardCashback RewardKind = "cashback"
	RewardReferral RewardKind = "referral"
)

// RewardJob is queued after a successful purchase.
type RewardJob struct {
	ID              string          `json:"id"`
	Kind            RewardKind      `json:"kind"`
	UserID          string          `json:"user_id"`
	TransactionID   string          `json:"transaction_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RewardSettings controls cashback and referral payouts.
type RewardSettings struct {
	CashbackEnabled     bool
	CashbackRate        decimal.Decimal
	ReferralEnabled     bool
	ReferralRate        decimal.Decimal
	ReferralDailyBudget decimal.Decimal
}
