package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/orchestrator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPurchaser struct {
	got orchestrator.PurchaseRequest
	tx  *models.Transaction
	err error
}

func (s *stubPurchaser) InitiateTransaction(_ context.Context, req orchestrator.PurchaseRequest) (*models.Transaction, error) {
	s.got = req
	return s.tx, s.err
}

func (s *stubPurchaser) GetTransactions(_ context.Context, _ string, _ int32) ([]models.Transaction, error) {
	if s.tx == nil {
		return nil, s.err
	}
	return []models.Transaction{*s.tx}, s.err
}

func electricityRequest(t *testing.T) *http.Request {
	t.Helper()
	body, err := json.Marshal(api.NewTransaction{
		UserID:    "user1",
		Type:      "electricity",
		Amount:    decimal.NewFromInt(2500),
		Details:   json.RawMessage(`{"meterNumber":"45031234567","provider":"ikeja-electric"}`),
		RequestID: "req-9",
	})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(body))
}

func TestInitiateTransaction(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		stub := &stubPurchaser{tx: &models.Transaction{
			ID:        "c8a4c2b0-7a51-5d2c-9f0e-2f4b4f7c8e11",
			UserID:    "user1",
			Type:      models.Electricity,
			Amount:    decimal.NewFromInt(2500),
			Details:   models.ElectricityDetails{MeterNumber: "45031234567", Provider: "ikeja-electric"},
			Status:    models.TransactionSuccess,
			CreatedAt: time.Now(),
		}}
		h := NewTransactionsHandler(stub)
		rr := httptest.NewRecorder()

		// Act
		h.InitiateTransaction(rr, electricityRequest(t))

		// Assert
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, models.ElectricityDetails{MeterNumber: "45031234567", Provider: "ikeja-electric"}, stub.got.Details)
		assert.Equal(t, "req-9", stub.got.RequestID)
		var tx api.Transaction
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
		assert.Equal(t, "success", tx.Status)
	})

	t.Run("Transaction Failed", func(t *testing.T) {
		// Arrange
		h := NewTransactionsHandler(&stubPurchaser{err: errs.TransactionFailedErr("meter not found")})
		rr := httptest.NewRecorder()

		// Act
		h.InitiateTransaction(rr, electricityRequest(t))

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "meter not found")
	})

	t.Run("Malformed Details", func(t *testing.T) {
		// Arrange
		stub := &stubPurchaser{}
		h := NewTransactionsHandler(stub)
		body := `{"user_id":"user1","type":"airtime","amount":"100","details":"08031234567"}`
		rr := httptest.NewRecorder()

		// Act
		h.InitiateTransaction(rr, httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body)))

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, stub.got.UserID)
	})
}

func TestListTransactions(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		stub := &stubPurchaser{tx: &models.Transaction{ID: "tx-1", UserID: "user1", Type: models.Airtime, Status: models.TransactionFailed, FailureReason: "declined"}}
		rr := httptest.NewRecorder()

		NewTransactionsHandler(stub).ListTransactions(rr, httptest.NewRequest(http.MethodGet, "/users/user1/transactions", nil), "user1", api.ListParams{})

		assert.Equal(t, http.StatusOK, rr.Code)
		var txs []api.Transaction
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &txs))
		require.Len(t, txs, 1)
		assert.Equal(t, "declined", txs[0].FailureReason)
	})
}
