package transactions

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/handlers/respond"
	"github.com/chris/vtu-ledger/pkg/mapping"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/orchestrator"
)

// Purchaser runs and lists VTU purchases.
type Purchaser interface {
	InitiateTransaction(ctx context.Context, req orchestrator.PurchaseRequest) (*models.Transaction, error)
	GetTransactions(ctx context.Context, userID string, limit int32) ([]models.Transaction, error)
}

// TransactionsHandler holds the dependencies for transaction-related handlers.
type TransactionsHandler struct {
	Purchaser Purchaser
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(p Purchaser) *TransactionsHandler {
	return &TransactionsHandler{Purchaser: p}
}

// InitiateTransaction handles a purchase request.
func (h *TransactionsHandler) InitiateTransaction(w http.ResponseWriter, r *http.Request) {
	var newTx api.NewTransaction
	if err := json.NewDecoder(r.Body).Decode(&newTx); err != nil {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}

	req := orchestrator.PurchaseRequest{
		UserID:    newTx.UserID,
		Type:      models.TransactionType(newTx.Type),
		Amount:    newTx.Amount,
		RequestID: newTx.RequestID,
	}
	// Unknown types are left without details and rejected by the orchestrator.
	if req.Type.Valid() {
		details, err := models.DecodeDetails(req.Type, newTx.Details)
		if err != nil {
			respond.BadRequest(w, "Invalid details: %v", err)
			return
		}
		req.Details = details
	}

	tx, err := h.Purchaser.InitiateTransaction(r.Context(), req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, mapping.ToApiTransaction(tx))
}

// ListTransactions returns a user's purchases, newest first.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request, userID string, params api.ListParams) {
	var limit int32
	if params.Limit != nil {
		limit = *params.Limit
	}

	txs, err := h.Purchaser.GetTransactions(r.Context(), userID, limit)
	if err != nil {
		respond.Error(w, err)
		return
	}

	apiTxs := make([]*api.Transaction, len(txs))
	for i, tx := range txs {
		apiTxs[i] = mapping.ToApiTransaction(&tx)
	}
	respond.JSON(w, http.StatusOK, apiTxs)
}
