package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/handlers/respond"
	"github.com/chris/vtu-ledger/pkg/mapping"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/settlement"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VerifHashHeader carries the secret hash Flutterwave sends with webhooks.
const VerifHashHeader = "verif-hash"

// Settler registers and settles deposits.
type Settler interface {
	RegisterPayment(ctx context.Context, txRef, userID string, amount decimal.Decimal) (*models.Payment, error)
	GetPayment(ctx context.Context, txRef string) (*models.Payment, error)
	CreditPayment(ctx context.Context, p *models.Payment, transactionID string) (*settlement.Result, error)
}

// PaymentsHandler holds the dependencies for deposit-related handlers.
type PaymentsHandler struct {
	Settler     Settler
	WebhookHash string
	Logger      *zap.Logger
}

// NewPaymentsHandler creates a new PaymentsHandler. An empty webhookHash
// rejects every webhook.
func NewPaymentsHandler(s Settler, webhookHash string, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{Settler: s, WebhookHash: webhookHash, Logger: logger}
}

// RegisterPayment records a pending deposit before the user is sent to the
// provider's checkout.
func (h *PaymentsHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req api.NewPayment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}

	p, err := h.Settler.RegisterPayment(r.Context(), req.TxRef, req.UserID, req.Amount)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, mapping.ToApiPayment(p))
}

// VerifyPayment settles a registered deposit on demand.
func (h *PaymentsHandler) VerifyPayment(w http.ResponseWriter, r *http.Request, txRef string) {
	var req api.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}

	p, err := h.Settler.GetPayment(r.Context(), txRef)
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.settle(w, r, p, req.TransactionID)
}

// FlutterwaveWebhook settles the deposit a charge.completed event names. The
// event body is not trusted beyond its identifiers: settlement re-verifies
// the charge with the provider.
func (h *PaymentsHandler) FlutterwaveWebhook(w http.ResponseWriter, r *http.Request) {
	hash := r.Header.Get(VerifHashHeader)
	if h.WebhookHash == "" || subtle.ConstantTimeCompare([]byte(hash), []byte(h.WebhookHash)) != 1 {
		respond.Error(w, errs.E(errs.Unauthorized, "invalid webhook signature", nil))
		return
	}

	var event api.FlutterwaveWebhook
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respond.BadRequest(w, "Invalid request body: %v", err)
		return
	}
	log := h.Logger.With(zap.String("event", event.Event), zap.String("tx_ref", event.Data.TxRef))
	if event.Event != "charge.completed" || event.Data.TxRef == "" {
		log.Info("ignoring webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}

	p, err := h.Settler.GetPayment(r.Context(), event.Data.TxRef)
	if err != nil {
		log.Warn("webhook for unknown payment", zap.Error(err))
		respond.Error(w, err)
		return
	}
	h.settle(w, r, p, event.Data.ID.String())
}

func (h *PaymentsHandler) settle(w http.ResponseWriter, r *http.Request, p *models.Payment, transactionID string) {
	res, err := h.Settler.CreditPayment(r.Context(), p, transactionID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := api.VerifyResult{Success: res.Success, AlreadySettled: res.AlreadySettled}
	if res.Payment != nil {
		out.Payment = mapping.ToApiPayment(res.Payment)
	}
	respond.JSON(w, http.StatusOK, out)
}
