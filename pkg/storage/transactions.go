package storage

import (
	"context"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
)

// TransactionUpdate is the terminal state written to a pending transaction.
type TransactionUpdate struct {
	Status            models.TransactionStatus
	ProviderReference string
	ProviderResponse  string
	FailureReason     string
	UpdatedAt         time.Time
}

// TransactionReader defines the interface for reading transaction data.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListTransactionsByUserID retrieves a user's transactions, newest first.
	ListTransactionsByUserID(ctx context.Context, userID string, limit int32) ([]models.Transaction, error)
}

// TransactionManager defines the interface for recording purchases.
type TransactionManager interface {
	// CreateTransaction stores a new transaction. It returns
	// ErrDuplicateTransaction if the id is already taken.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// UpdateTransactionStatus moves a pending transaction to a terminal state.
	UpdateTransactionStatus(ctx context.Context, txID string, update TransactionUpdate) error
}

// TransactionStore combines the reader and manager interfaces.
type TransactionStore interface {
	TransactionReader
	TransactionManager
}
