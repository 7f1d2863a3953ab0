package vtu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase(t *testing.T) {
	airtime := Request{
		RequestID: "req-1",
		Type:      models.Airtime,
		Amount:    decimal.NewFromInt(500),
		Details:   models.AirtimeDetails{Phone: "08012345678", Network: "MTN"},
	}

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/pay", r.URL.Path)
			assert.Equal(t, "key", r.Header.Get("api-key"))

			var got payRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "mtn", got.ServiceID)
			assert.Equal(t, "500.00", got.Amount)
			assert.Equal(t, "08012345678", got.Phone)

			w.Write([]byte(`{"code":"000","response_description":"TRANSACTION SUCCESSFUL","content":{"transactions":{"status":"delivered","transactionId":"VND-77"}}}`))
		}))
		defer srv.Close()

		res, err := NewClient(srv.URL, "key", "secret", time.Second).Purchase(context.Background(), airtime)

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "VND-77", res.Reference)
		assert.Equal(t, "TRANSACTION SUCCESSFUL", res.Message)
	})

	t.Run("Declined", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"016","response_description":"TRANSACTION FAILED","content":{"transactions":{"status":"failed"}}}`))
		}))
		defer srv.Close()

		res, err := NewClient(srv.URL, "key", "secret", time.Second).Purchase(context.Background(), airtime)

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "TRANSACTION FAILED", res.Message)
	})

	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "key", "secret", time.Second).Purchase(context.Background(), airtime)
		assert.ErrorContains(t, err, "HTTP 503")
	})
}

func TestBuildPayload(t *testing.T) {
	t.Run("Data", func(t *testing.T) {
		p, err := buildPayload(Request{Amount: decimal.NewFromInt(1000), Details: models.DataDetails{Phone: "08012345678", PlanID: "mtn-1gb", Network: "MTN"}})
		require.NoError(t, err)
		assert.Equal(t, "mtn-data", p.ServiceID)
		assert.Equal(t, "mtn-1gb", p.VariationCode)
	})

	t.Run("Electricity", func(t *testing.T) {
		p, err := buildPayload(Request{Amount: decimal.NewFromInt(1000), Details: models.ElectricityDetails{MeterNumber: "4501", Provider: "Ikeja-Electric"}})
		require.NoError(t, err)
		assert.Equal(t, "ikeja-electric", p.ServiceID)
		assert.Equal(t, "4501", p.BillersCode)
	})

	t.Run("Missing Details", func(t *testing.T) {
		_, err := buildPayload(Request{})
		assert.Error(t, err)
	})
}
