package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/vtu-ledger/pkg/api"
	ledgerhandler "github.com/chris/vtu-ledger/pkg/handlers/ledger"
	"github.com/chris/vtu-ledger/pkg/handlers/payments"
	"github.com/chris/vtu-ledger/pkg/handlers/transactions"
	"github.com/chris/vtu-ledger/pkg/handlers/wallets"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/models"
	notifymocks "github.com/chris/vtu-ledger/pkg/notify/mocks"
	"github.com/chris/vtu-ledger/pkg/orchestrator"
	"github.com/chris/vtu-ledger/pkg/provider"
	providermocks "github.com/chris/vtu-ledger/pkg/provider/mocks"
	"github.com/chris/vtu-ledger/pkg/settlement"
	"github.com/chris/vtu-ledger/pkg/storage/memory"
	"github.com/chris/vtu-ledger/pkg/vtu"
	vtumocks "github.com/chris/vtu-ledger/pkg/vtu/mocks"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type server struct {
	http.Handler
	vendor   *vtumocks.Vendor
	verifier *providermocks.Verifier
	notifier *notifymocks.Sender
}

type discardScheduler struct{}

func (discardScheduler) ScheduleReward(context.Context, models.RewardJob) error { return nil }

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.New()
	l := ledger.New(store, zap.NewNop())
	vendor := vtumocks.NewVendor(t)
	verifier := providermocks.NewVerifier(t)
	verifier.On("Name").Return("flutterwave").Maybe()
	notifier := notifymocks.NewSender(t)

	orch := orchestrator.New(l, store, vtu.NewRegistry(vendor), discardScheduler{}, zap.NewNop())
	engine := settlement.New(verifier, store, l, notifier, zap.NewNop())

	h := NewApiHandler(
		wallets.NewWalletsHandler(l),
		ledgerhandler.NewLedgerHandler(l),
		transactions.NewTransactionsHandler(orch),
		payments.NewPaymentsHandler(engine, "s3cret", zap.NewNop()),
	)
	return &server{Handler: HandlerFromMux(h, chi.NewRouter()), vendor: vendor, verifier: verifier, notifier: notifier}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestWalletRoutes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		s := newServer(t)

		// Act
		created := s.do(t, http.MethodPost, "/wallets/u1", nil)
		credited := s.do(t, http.MethodPost, "/wallets/u1/credit", api.AmountRequest{Amount: decimal.NewFromInt(200), Bucket: "cashback", Description: "promo"})
		moved := s.do(t, http.MethodPost, "/wallets/u1/transfer", api.TransferRequest{Amount: decimal.NewFromInt(150), From: "cashback", To: "main"})
		got := s.do(t, http.MethodGet, "/wallets/u1", nil)

		// Assert
		assert.Equal(t, http.StatusCreated, created.Code)
		assert.Equal(t, http.StatusOK, credited.Code)
		assert.Equal(t, "200", decode[api.Balance](t, credited).Balance.String())
		assert.Equal(t, http.StatusOK, moved.Code)
		wallet := decode[api.Wallet](t, got)
		assert.Equal(t, "150", wallet.Main.String())
		assert.Equal(t, "50", wallet.Cashback.String())
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.do(t, http.MethodPost, "/wallets/u1", nil)

		// Act
		rr := s.do(t, http.MethodPost, "/wallets/u1/debit", api.AmountRequest{Amount: decimal.NewFromInt(1), Description: "test"})

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "insufficient_funds", decode[api.Error](t, rr).Kind)
	})

	t.Run("Not Found", func(t *testing.T) {
		// Arrange
		s := newServer(t)

		// Act
		rr := s.do(t, http.MethodPost, "/wallets/ghost/credit", api.AmountRequest{Amount: decimal.NewFromInt(1), Description: "test"})

		// Assert
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "wallet_not_found", decode[api.Error](t, rr).Kind)
	})

	t.Run("Invalid Bucket Transfer", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.do(t, http.MethodPost, "/wallets/u1", nil)

		// Act
		rr := s.do(t, http.MethodPost, "/wallets/u1/transfer", api.TransferRequest{Amount: decimal.NewFromInt(1), From: "main", To: "cashback"})

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_bucket", decode[api.Error](t, rr).Kind)
	})
}

func TestHistoryRoute(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodPost, "/wallets/u1", nil)
	for i := 0; i < 3; i++ {
		s.do(t, http.MethodPost, "/wallets/u1/credit", api.AmountRequest{Amount: decimal.NewFromInt(10), Description: "top up"})
	}

	t.Run("Success", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/wallets/u1/history?limit=2", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		entries := decode[[]api.LedgerEntry](t, rr)
		require.Len(t, entries, 2)
		assert.Equal(t, "30", entries[0].BalanceAfter.String())
	})

	t.Run("Bad Limit", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/wallets/u1/history?limit=ten", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Negative Limit", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/wallets/u1/history?limit=-1", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTransactionRoutes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.do(t, http.MethodPost, "/wallets/u1", nil)
		s.do(t, http.MethodPost, "/wallets/u1/credit", api.AmountRequest{Amount: decimal.NewFromInt(1000), Description: "seed"})
		s.vendor.On("Purchase", mock.Anything, mock.Anything).Return(&vtu.Result{Success: true, Reference: "VTP-1"}, nil).Once()
		body := api.NewTransaction{
			UserID:    "u1",
			Type:      "data",
			Amount:    decimal.NewFromInt(300),
			Details:   json.RawMessage(`{"phone":"08031234567","planId":"mtn-1gb","network":"mtn"}`),
			RequestID: "req-1",
		}

		// Act
		rr := s.do(t, http.MethodPost, "/transactions", body)
		list := s.do(t, http.MethodGet, "/users/u1/transactions", nil)

		// Assert
		assert.Equal(t, http.StatusCreated, rr.Code)
		tx := decode[api.Transaction](t, rr)
		assert.Equal(t, "success", tx.Status)
		assert.JSONEq(t, string(body.Details), string(tx.Details))
		assert.Len(t, decode[[]api.Transaction](t, list), 1)
	})

	t.Run("Unknown Type", func(t *testing.T) {
		s := newServer(t)

		rr := s.do(t, http.MethodPost, "/transactions", api.NewTransaction{UserID: "u1", Type: "betting", Amount: decimal.NewFromInt(10)})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_transaction_type", decode[api.Error](t, rr).Kind)
	})
}

func TestPaymentRoutes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.verifier.On("VerifyByReference", mock.Anything, "FUND-1").
			Return(&provider.Verification{TxRef: "FUND-1", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(2000)}, nil).Once()
		s.notifier.On("Send", mock.Anything, "u1", "Wallet funded", mock.Anything).Once()

		// Act
		registered := s.do(t, http.MethodPost, "/payments", api.NewPayment{TxRef: "FUND-1", UserID: "u1", Amount: decimal.NewFromInt(2000)})
		verified := s.do(t, http.MethodPost, "/payments/FUND-1/verify", nil)
		again := s.do(t, http.MethodPost, "/payments/FUND-1/verify", nil)
		wallet := s.do(t, http.MethodGet, "/wallets/u1", nil)

		// Assert
		assert.Equal(t, http.StatusCreated, registered.Code)
		assert.Equal(t, http.StatusOK, verified.Code)
		assert.True(t, decode[api.VerifyResult](t, verified).Success)
		assert.True(t, decode[api.VerifyResult](t, again).AlreadySettled)
		assert.Equal(t, "2000", decode[api.Wallet](t, wallet).Main.String())
	})

	t.Run("Not Found", func(t *testing.T) {
		s := newServer(t)

		rr := s.do(t, http.MethodPost, "/payments/FUND-404/verify", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Webhook", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.do(t, http.MethodPost, "/payments", api.NewPayment{TxRef: "FUND-2", UserID: "u2", Amount: decimal.NewFromInt(500)})
		s.verifier.On("VerifyByID", mock.Anything, "4975363").
			Return(&provider.Verification{ID: "4975363", TxRef: "FUND-2", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(500)}, nil).Once()
		s.notifier.On("Send", mock.Anything, "u2", "Wallet funded", mock.Anything).Once()
		event := json.RawMessage(`{"event":"charge.completed","data":{"id":4975363,"tx_ref":"FUND-2","status":"successful","amount":500}}`)

		// Act
		rejected := s.do(t, http.MethodPost, "/webhooks/flutterwave", event, "verif-hash", "wrong")
		accepted := s.do(t, http.MethodPost, "/webhooks/flutterwave", event, "verif-hash", "s3cret")

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rejected.Code)
		assert.Equal(t, http.StatusOK, accepted.Code)
		assert.True(t, decode[api.VerifyResult](t, accepted).Success)
	})

	t.Run("Transaction Id Of Another Payment", func(t *testing.T) {
		// Arrange
		s := newServer(t)
		s.do(t, http.MethodPost, "/payments", api.NewPayment{TxRef: "FUND-SMALL", UserID: "attacker", Amount: decimal.NewFromInt(100)})
		s.do(t, http.MethodPost, "/payments", api.NewPayment{TxRef: "FUND-BIG", UserID: "victim", Amount: decimal.NewFromInt(100000)})
		s.verifier.On("VerifyByID", mock.Anything, "288200108").
			Return(&provider.Verification{ID: "288200108", TxRef: "FUND-BIG", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(100000)}, nil).Once()

		// Act
		rr := s.do(t, http.MethodPost, "/payments/FUND-SMALL/verify", api.VerifyPaymentRequest{TransactionID: "288200108"})
		wallet := s.do(t, http.MethodGet, "/wallets/attacker", nil)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "0", decode[api.Wallet](t, wallet).Main.String())
	})
}
