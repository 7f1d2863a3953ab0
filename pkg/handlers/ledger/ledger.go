package ledger

import (
	"context"
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/handlers/respond"
	"github.com/chris/vtu-ledger/pkg/mapping"
	"github.com/chris/vtu-ledger/pkg/models"
)

// HistoryReader lists a user's ledger entries.
type HistoryReader interface {
	GetHistory(ctx context.Context, userID string, limit int32) ([]models.LedgerEntry, error)
}

// LedgerHandler holds the dependencies for ledger-related handlers.
type LedgerHandler struct {
	History HistoryReader
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(history HistoryReader) *LedgerHandler {
	return &LedgerHandler{History: history}
}

func (h *LedgerHandler) ListLedgerEntries(w http.ResponseWriter, r *http.Request, userID string, params api.ListParams) {
	var limit int32
	if params.Limit != nil {
		limit = *params.Limit
	}

	domainEntries, err := h.History.GetHistory(r.Context(), userID, limit)
	if err != nil {
		respond.Error(w, err)
		return
	}

	apiEntries := make([]*api.LedgerEntry, len(domainEntries))
	for i, entry := range domainEntries {
		apiEntries[i] = mapping.ToApiLedgerEntry(&entry)
	}
	respond.JSON(w, http.StatusOK, apiEntries)
}
