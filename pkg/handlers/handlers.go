package handlers

import (
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/handlers/ledger"
	"github.com/chris/vtu-ledger/pkg/handlers/payments"
	"github.com/chris/vtu-ledger/pkg/handlers/respond"
	"github.com/chris/vtu-ledger/pkg/handlers/transactions"
	"github.com/chris/vtu-ledger/pkg/handlers/wallets"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ApiHandler groups the resource handlers served by the HTTP API.
type ApiHandler struct {
	Wallets      *wallets.WalletsHandler
	Ledger       *ledger.LedgerHandler
	Transactions *transactions.TransactionsHandler
	Payments     *payments.PaymentsHandler
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(w *wallets.WalletsHandler, l *ledger.LedgerHandler, t *transactions.TransactionsHandler, p *payments.PaymentsHandler) *ApiHandler {
	return &ApiHandler{Wallets: w, Ledger: l, Transactions: t, Payments: p}
}

// HandlerFromMux mounts every route on r and returns it.
func HandlerFromMux(h *ApiHandler, r chi.Router) http.Handler {
	r.Route("/wallets/{userID}", func(r chi.Router) {
		r.Post("/", withUserID(h.Wallets.CreateWallet))
		r.Get("/", withUserID(h.Wallets.GetWallet))
		r.Post("/credit", withUserID(h.Wallets.Credit))
		r.Post("/debit", withUserID(h.Wallets.Debit))
		r.Post("/transfer", withUserID(h.Wallets.Transfer))
		r.Get("/history", withListParams(h.Ledger.ListLedgerEntries))
	})

	r.Post("/transactions", h.Transactions.InitiateTransaction)
	r.Get("/users/{userID}/transactions", withListParams(h.Transactions.ListTransactions))

	r.Post("/payments", h.Payments.RegisterPayment)
	r.Post("/payments/{txRef}/verify", func(w http.ResponseWriter, r *http.Request) {
		h.Payments.VerifyPayment(w, r, chi.URLParam(r, "txRef"))
	})
	r.Post("/webhooks/flutterwave", h.Payments.FlutterwaveWebhook)

	return r
}

func withUserID(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, chi.URLParam(r, "userID"))
	}
}

func withListParams(fn func(http.ResponseWriter, *http.Request, string, api.ListParams)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params api.ListParams

		err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
		if err != nil {
			respond.BadRequest(w, "Invalid format for parameter limit: %v", err)
			return
		}
		if params.Limit != nil && *params.Limit < 0 {
			respond.BadRequest(w, "limit must not be negative, got %d", *params.Limit)
			return
		}

		fn(w, r, chi.URLParam(r, "userID"), params)
	}
}
