package dynamodb

import (
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal strings. DynamoDB numbers would round-trip
// through float64 in attributevalue.
//
// Times are stored as integer nanoseconds since the epoch. created_at is an
// index sort key and RFC3339 strings trim trailing zeros, so they do not sort
// in time order.

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type walletRecord struct {
	UserID    string `dynamodbav:"user_id"`
	Main      string `dynamodbav:"main_balance"`
	Cashback  string `dynamodbav:"cashback_balance"`
	Referral  string `dynamodbav:"referral_balance"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt int64  `dynamodbav:"created_at"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

func toWalletRecord(w *models.Wallet) walletRecord {
	return walletRecord{
		UserID:    w.UserID,
		Main:      w.Main.String(),
		Cashback:  w.Cashback.String(),
		Referral:  w.Referral.String(),
		Version:   w.Version,
		CreatedAt: toUnixNano(w.CreatedAt),
		UpdatedAt: toUnixNano(w.UpdatedAt),
	}
}

func (r walletRecord) toModel() (*models.Wallet, error) {
	main, err := decimal.NewFromString(r.Main)
	if err != nil {
		return nil, fmt.Errorf("invalid main balance %q: %w", r.Main, err)
	}
	cashback, err := decimal.NewFromString(r.Cashback)
	if err != nil {
		return nil, fmt.Errorf("invalid cashback balance %q: %w", r.Cashback, err)
	}
	referral, err := decimal.NewFromString(r.Referral)
	if err != nil {
		return nil, fmt.Errorf("invalid referral balance %q: %w", r.Referral, err)
	}
	return &models.Wallet{
		UserID:    r.UserID,
		Main:      main,
		Cashback:  cashback,
		Referral:  referral,
		Version:   r.Version,
		CreatedAt: fromUnixNano(r.CreatedAt),
		UpdatedAt: fromUnixNano(r.UpdatedAt),
	}, nil
}

type ledgerRecord struct {
	UserID        string `dynamodbav:"user_id"`
	Reference     string `dynamodbav:"reference"`
	Direction     string `dynamodbav:"type"`
	Amount        string `dynamodbav:"amount"`
	Bucket        string `dynamodbav:"bucket"`
	Description   string `dynamodbav:"description"`
	Status        string `dynamodbav:"status"`
	BalanceBefore string `dynamodbav:"balance_before"`
	BalanceAfter  string `dynamodbav:"balance_after"`
	CreatedAt     int64  `dynamodbav:"created_at"`
}

func toLedgerRecord(e models.LedgerEntry) ledgerRecord {
	return ledgerRecord{
		UserID:        e.UserID,
		Reference:     e.Reference,
		Direction:     string(e.Direction),
		Amount:        e.Amount.String(),
		Bucket:        string(e.Bucket),
		Description:   e.Description,
		Status:        e.Status,
		BalanceBefore: e.BalanceBefore.String(),
		BalanceAfter:  e.BalanceAfter.String(),
		CreatedAt:     toUnixNano(e.CreatedAt),
	}
}

func (r ledgerRecord) toModel() (models.LedgerEntry, error) {
	var amounts [3]decimal.Decimal
	for i, raw := range []string{r.Amount, r.BalanceBefore, r.BalanceAfter} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return models.LedgerEntry{}, fmt.Errorf("invalid amount %q in entry %s: %w", raw, r.Reference, err)
		}
		amounts[i] = d
	}
	return models.LedgerEntry{
		UserID:        r.UserID,
		Direction:     models.Direction(r.Direction),
		Amount:        amounts[0],
		Bucket:        models.Bucket(r.Bucket),
		Description:   r.Description,
		Reference:     r.Reference,
		Status:        r.Status,
		BalanceBefore: amounts[1],
		BalanceAfter:  amounts[2],
		CreatedAt:     fromUnixNano(r.CreatedAt),
	}, nil
}

type transactionRecord struct {
	ID                string `dynamodbav:"id"`
	UserID            string `dynamodbav:"user_id"`
	Type              string `dynamodbav:"type"`
	Amount            string `dynamodbav:"amount"`
	Details           string `dynamodbav:"details,omitempty"`
	RequestID         string `dynamodbav:"request_id,omitempty"`
	Status            string `dynamodbav:"status"`
	ProviderReference string `dynamodbav:"provider_reference,omitempty"`
	ProviderResponse  string `dynamodbav:"provider_response,omitempty"`
	FailureReason     string `dynamodbav:"failure_reason,omitempty"`
	CreatedAt         int64  `dynamodbav:"created_at"`
	UpdatedAt         int64  `dynamodbav:"updated_at"`
}

func toTransactionRecord(tx *models.Transaction) (transactionRecord, error) {
	details, err := models.EncodeDetails(tx.Details)
	if err != nil {
		return transactionRecord{}, err
	}
	return transactionRecord{
		ID:                tx.ID,
		UserID:            tx.UserID,
		Type:              string(tx.Type),
		Amount:            tx.Amount.String(),
		Details:           details,
		RequestID:         tx.RequestID,
		Status:            string(tx.Status),
		ProviderReference: tx.ProviderReference,
		ProviderResponse:  tx.ProviderResponse,
		FailureReason:     tx.FailureReason,
		CreatedAt:         toUnixNano(tx.CreatedAt),
		UpdatedAt:         toUnixNano(tx.UpdatedAt),
	}, nil
}

func (r transactionRecord) toModel() (*models.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in transaction %s: %w", r.Amount, r.ID, err)
	}
	tx := &models.Transaction{
		ID:                r.ID,
		UserID:            r.UserID,
		Type:              models.TransactionType(r.Type),
		Amount:            amount,
		RequestID:         r.RequestID,
		Status:            models.TransactionStatus(r.Status),
		ProviderReference: r.ProviderReference,
		ProviderResponse:  r.ProviderResponse,
		FailureReason:     r.FailureReason,
		CreatedAt:         fromUnixNano(r.CreatedAt),
		UpdatedAt:         fromUnixNano(r.UpdatedAt),
	}
	if r.Details != "" {
		if tx.Details, err = models.DecodeDetails(tx.Type, []byte(r.Details)); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

type paymentRecord struct {
	TxRef            string `dynamodbav:"tx_ref"`
	UserID           string `dynamodbav:"user_id,omitempty"`
	Amount           string `dynamodbav:"amount"`
	Status           string `dynamodbav:"status"`
	Provider         string `dynamodbav:"provider"`
	ProviderResponse string `dynamodbav:"provider_response,omitempty"`
	VerifiedAt       int64  `dynamodbav:"verified_at,omitempty"`
	CreatedAt        int64  `dynamodbav:"created_at"`
}

func toPaymentRecord(p *models.Payment) paymentRecord {
	r := paymentRecord{
		TxRef:            p.TxRef,
		UserID:           p.UserID,
		Amount:           p.Amount.String(),
		Status:           string(p.Status),
		Provider:         p.Provider,
		ProviderResponse: p.ProviderResponse,
		CreatedAt:        toUnixNano(p.CreatedAt),
	}
	if p.VerifiedAt != nil {
		r.VerifiedAt = toUnixNano(*p.VerifiedAt)
	}
	return r
}

func (r paymentRecord) toModel() (*models.Payment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in payment %s: %w", r.Amount, r.TxRef, err)
	}
	p := &models.Payment{
		TxRef:            r.TxRef,
		UserID:           r.UserID,
		Amount:           amount,
		Status:           models.PaymentStatus(r.Status),
		Provider:         r.Provider,
		ProviderResponse: r.ProviderResponse,
		CreatedAt:        fromUnixNano(r.CreatedAt),
	}
	if r.VerifiedAt != 0 {
		verified := fromUnixNano(r.VerifiedAt)
		p.VerifiedAt = &verified
	}
	return p, nil
}
