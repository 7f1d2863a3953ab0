package wallets

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/handlers/respond"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/mapping"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Ledger is the wallet ledger as the HTTP layer sees it.
type Ledger interface {
	CreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID string) (*models.Wallet, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)
	Transfer(ctx context.Context, userID string, amount decimal.Decimal, from, to models.Bucket) (*models.Wallet, error)
}

// WalletsHandler holds the dependencies for wallet-related handlers.
type WalletsHandler struct {
	Ledger Ledger
}

// NewWalletsHandler creates a new WalletsHandler.
func NewWalletsHandler(l Ledger) *WalletsHandler {
	return &WalletsHandler{Ledger: l}
}

// CreateWallet creates an empty wallet. Repeating it returns the existing one.
func (h *WalletsHandler) CreateWallet(w http.ResponseWriter, r *http.Request, userID string) {
	wallet, err := h.Ledger.CreateWallet(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, mapping.ToApiWallet(wallet))
}

// GetWallet returns all three balances.
func (h *WalletsHandler) GetWallet(w http.ResponseWriter, r *http.Request, userID string) {
	wallet, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}

func (h *WalletsHandler) Credit(w http.ResponseWriter, r *http.Request, userID string) {
	h.adjust(w, r, userID, h.Ledger.Credit)
}

func (h *WalletsHandler) Debit(w http.ResponseWriter, r *http.Request, userID string) {
	h.adjust(w, r, userID, h.Ledger.Debit)
}

type adjustFunc func(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)

func (h *WalletsHandler) adjust(w http.ResponseWriter, r *http.Request, userID string, fn adjustFunc) {
	var req api.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}
	bucket := models.BucketMain
	if req.Bucket != "" {
		bucket = models.Bucket(req.Bucket)
	}
	var opts []ledger.EntryOption
	if req.Reference != nil {
		opts = append(opts, ledger.WithReference(*req.Reference))
	}

	balance, err := fn(r.Context(), userID, req.Amount, bucket, req.Description, opts...)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, api.Balance{UserID: userID, Bucket: string(bucket), Balance: balance})
}

// Transfer moves cashback or referral earnings into main.
func (h *WalletsHandler) Transfer(w http.ResponseWriter, r *http.Request, userID string) {
	var req api.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}
	to := models.BucketMain
	if req.To != "" {
		to = models.Bucket(req.To)
	}

	wallet, err := h.Ledger.Transfer(r.Context(), userID, req.Amount, models.Bucket(req.From), to)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}
