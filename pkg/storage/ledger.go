package storage

import (
	"context"

	"github.com/chris/vtu-ledger/pkg/models"
)

// LedgerReader defines the interface for reading ledger data.
type LedgerReader interface {
	// ListLedgerEntries retrieves a user's most recent ledger entries, newest first.
	ListLedgerEntries(ctx context.Context, userID string, limit int32) ([]models.LedgerEntry, error)
}
