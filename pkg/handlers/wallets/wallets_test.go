package wallets_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/handlers/wallets"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*wallets.WalletsHandler, *ledger.Service) {
	t.Helper()
	l := ledger.New(memory.New(), zap.NewNop())
	_, err := l.CreateWallet(context.Background(), "user-c")
	require.NoError(t, err)
	return wallets.NewWalletsHandler(l), l
}

func TestCreateWallet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h, _ := newHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/wallets/user-d", nil)
		rr := httptest.NewRecorder()

		h.CreateWallet(rr, req, "user-d")

		assert.Equal(t, http.StatusCreated, rr.Code)
		var wallet api.Wallet
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &wallet))
		assert.Equal(t, "user-d", wallet.UserID)
		assert.True(t, wallet.Main.IsZero())
	})

	t.Run("Empty User", func(t *testing.T) {
		h, _ := newHandler(t)
		rr := httptest.NewRecorder()

		h.CreateWallet(rr, httptest.NewRequest(http.MethodPost, "/wallets/", nil), "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCredit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h, l := newHandler(t)
		body, _ := json.Marshal(api.AmountRequest{Amount: decimal.RequireFromString("99.50"), Description: "manual top up"})
		rr := httptest.NewRecorder()

		h.Credit(rr, httptest.NewRequest(http.MethodPost, "/wallets/user-c/credit", bytes.NewReader(body)), "user-c")

		assert.Equal(t, http.StatusOK, rr.Code)
		w, _ := l.GetBalance(context.Background(), "user-c")
		assert.Equal(t, "99.5", w.Main.String())
	})

	t.Run("Duplicate Reference", func(t *testing.T) {
		h, _ := newHandler(t)
		ref := "PROMO-1"
		body, _ := json.Marshal(api.AmountRequest{Amount: decimal.NewFromInt(5), Bucket: "referral", Description: "promo", Reference: &ref})

		first := httptest.NewRecorder()
		h.Credit(first, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "user-c")
		second := httptest.NewRecorder()
		h.Credit(second, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "user-c")

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("Bad Body", func(t *testing.T) {
		h, _ := newHandler(t)
		rr := httptest.NewRecorder()

		h.Credit(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")), "user-c")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Invalid Bucket", func(t *testing.T) {
		h, _ := newHandler(t)
		body, _ := json.Marshal(api.AmountRequest{Amount: decimal.NewFromInt(5), Bucket: "savings"})
		rr := httptest.NewRecorder()

		h.Credit(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "user-c")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid_bucket")
	})
}

func TestDebit(t *testing.T) {
	h, l := newHandler(t)
	_, err := l.Credit(context.Background(), "user-c", decimal.NewFromInt(100), models.BucketMain, "seed")
	require.NoError(t, err)
	body, _ := json.Marshal(api.AmountRequest{Amount: decimal.NewFromInt(40), Description: "withdrawal"})
	rr := httptest.NewRecorder()

	h.Debit(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "user-c")

	assert.Equal(t, http.StatusOK, rr.Code)
	var bal api.Balance
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bal))
	assert.Equal(t, "60", bal.Balance.String())
	assert.Equal(t, "main", bal.Bucket)
}

func TestTransfer(t *testing.T) {
	t.Run("Insufficient Funds", func(t *testing.T) {
		h, _ := newHandler(t)
		body, _ := json.Marshal(api.TransferRequest{Amount: decimal.NewFromInt(10), From: "cashback"})
		rr := httptest.NewRecorder()

		h.Transfer(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "user-c")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}
