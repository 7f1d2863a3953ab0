package storage

import (
	"context"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
)

// PaymentSettlement moves a pending payment to success. It rides along with a
// wallet mutation so the credit and the status change commit together.
type PaymentSettlement struct {
	TxRef            string
	ProviderResponse string
	VerifiedAt       time.Time
}

// WalletMutation is a single all-or-nothing write: the wallet's new balances,
// the ledger entries explaining them, and optionally a payment settlement.
// It only commits if the stored wallet is still at ExpectedVersion.
type WalletMutation struct {
	Wallet          models.Wallet
	ExpectedVersion int64
	Entries         []models.LedgerEntry
	Settlement      *PaymentSettlement
}

// WalletStore defines the interface for managing wallets.
type WalletStore interface {
	// GetWallet retrieves a user's wallet by their user ID.
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)

	// CreateWallet creates a new wallet for a user. It returns ErrWalletExists
	// if the user already has one.
	CreateWallet(ctx context.Context, wallet *models.Wallet) error

	// CommitWalletMutation applies m atomically. It returns ErrVersionConflict,
	// ErrDuplicateEntry or ErrPaymentNotPending when a condition fails.
	CommitWalletMutation(ctx context.Context, m WalletMutation) error
}
