package storage

import (
	"context"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
)

// PaymentReader defines the read side of external deposits.
type PaymentReader interface {
	GetPayment(ctx context.Context, txRef string) (*models.Payment, error)

	// ListPendingPayments returns up to limit pending payments for a provider,
	// oldest first. Payments without a user are never returned, so they cannot
	// fill a batch that nothing will settle.
	ListPendingPayments(ctx context.Context, provider string, limit int32) ([]models.Payment, error)
}

// PaymentStore is used by the settlement engine and the reconciliation loop.
// The success transition is not here: it is only reachable through
// WalletStore.CommitWalletMutation so it can never happen without the credit.
type PaymentStore interface {
	PaymentReader

	// CreatePayment registers a pending payment.
	CreatePayment(ctx context.Context, p *models.Payment) error

	// MarkPaymentFailed moves a pending payment to failed.
	MarkPaymentFailed(ctx context.Context, txRef, providerResponse string, at time.Time) error
}
