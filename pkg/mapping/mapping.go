package mapping

import (
	"encoding/json"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/models"
)

// ToApiWallet converts a domain Wallet model to an API Wallet model.
func ToApiWallet(wallet *models.Wallet) *api.Wallet {
	return &api.Wallet{
		UserID:    wallet.UserID,
		Main:      wallet.Main,
		Cashback:  wallet.Cashback,
		Referral:  wallet.Referral,
		Version:   wallet.Version,
		CreatedAt: wallet.CreatedAt,
		UpdatedAt: wallet.UpdatedAt,
	}
}

// ToApiLedgerEntry converts a domain LedgerEntry model to an API LedgerEntry model.
func ToApiLedgerEntry(entry *models.LedgerEntry) *api.LedgerEntry {
	return &api.LedgerEntry{
		Reference:     entry.Reference,
		Direction:     string(entry.Direction),
		Bucket:        string(entry.Bucket),
		Amount:        entry.Amount,
		Description:   entry.Description,
		Status:        entry.Status,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		CreatedAt:     entry.CreatedAt,
	}
}

// ToApiTransaction converts a domain Transaction model to an API Transaction
// model. Details that fail to encode are left out.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	out := &api.Transaction{
		ID:                tx.ID,
		UserID:            tx.UserID,
		Type:              string(tx.Type),
		Amount:            tx.Amount,
		RequestID:         tx.RequestID,
		Status:            string(tx.Status),
		ProviderReference: tx.ProviderReference,
		FailureReason:     tx.FailureReason,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
	if details, err := models.EncodeDetails(tx.Details); err == nil && details != "" {
		out.Details = json.RawMessage(details)
	}
	return out
}

// ToApiPayment converts a domain Payment model to an API Payment model.
func ToApiPayment(p *models.Payment) *api.Payment {
	return &api.Payment{
		TxRef:      p.TxRef,
		UserID:     p.UserID,
		Amount:     p.Amount,
		Status:     string(p.Status),
		Provider:   p.Provider,
		VerifiedAt: p.VerifiedAt,
		CreatedAt:  p.CreatedAt,
	}
}
