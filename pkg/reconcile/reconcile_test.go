package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/models"
	notifymocks "github.com/chris/vtu-ledger/pkg/notify/mocks"
	"github.com/chris/vtu-ledger/pkg/provider"
	providermocks "github.com/chris/vtu-ledger/pkg/provider/mocks"
	"github.com/chris/vtu-ledger/pkg/settlement"
	"github.com/chris/vtu-ledger/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pendingPayment(t *testing.T, store *memory.Store, txRef, userID, amount string, age time.Duration) {
	t.Helper()
	require.NoError(t, store.CreatePayment(context.Background(), &models.Payment{
		TxRef:     txRef,
		UserID:    userID,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.PaymentPending,
		Provider:  "flutterwave",
		CreatedAt: time.Now().Add(-age).UTC(),
	}))
}

func TestRunSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := memory.New()
		l := ledger.New(store, zap.NewNop())
		verifier := providermocks.NewVerifier(t)
		verifier.On("Name").Return("flutterwave").Maybe()
		notifier := notifymocks.NewSender(t)
		engine := settlement.New(verifier, store, l, notifier, zap.NewNop())

		pendingPayment(t, store, "FUND-PAID", "u1", "2000", 3*time.Minute)
		pendingPayment(t, store, "FUND-GONE", "u2", "500", 2*time.Minute)
		pendingPayment(t, store, "FUND-DOWN", "u3", "700", time.Minute)
		pendingPayment(t, store, "FUND-ORPHAN", "", "900", 0)

		verifier.On("VerifyByReference", mock.Anything, "FUND-PAID").
			Return(&provider.Verification{TxRef: "FUND-PAID", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(2000)}, nil).Once()
		verifier.On("VerifyByReference", mock.Anything, "FUND-GONE").Return(nil, provider.ErrReferenceNotFound).Once()
		verifier.On("VerifyByReference", mock.Anything, "FUND-DOWN").Return(nil, errors.New("connection reset")).Once()
		notifier.On("Send", mock.Anything, "u1", "Wallet funded", mock.Anything).Once()

		summary, err := New(store, engine, "flutterwave", 0, 2, zap.NewNop()).RunSweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, Summary{Checked: 3, Credited: 1, Failed: 1, Errors: 1}, summary)

		w, err := l.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "2000", w.Main.String())

		gone, _ := store.GetPayment(ctx, "FUND-GONE")
		assert.Equal(t, models.PaymentFailed, gone.Status)
		down, _ := store.GetPayment(ctx, "FUND-DOWN")
		assert.Equal(t, models.PaymentPending, down.Status)
	})

	t.Run("Second Sweep Does Not Recredit", func(t *testing.T) {
		store := memory.New()
		l := ledger.New(store, zap.NewNop())
		verifier := providermocks.NewVerifier(t)
		verifier.On("Name").Return("flutterwave").Maybe()
		notifier := notifymocks.NewSender(t)
		notifier.On("Send", mock.Anything, "u1", "Wallet funded", mock.Anything).Once()
		engine := settlement.New(verifier, store, l, notifier, zap.NewNop())
		pendingPayment(t, store, "FUND-PAID", "u1", "2000", time.Minute)
		verifier.On("VerifyByReference", mock.Anything, "FUND-PAID").
			Return(&provider.Verification{TxRef: "FUND-PAID", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(2000)}, nil).Once()

		r := New(store, engine, "flutterwave", 0, 0, zap.NewNop())
		_, err := r.RunSweep(ctx)
		require.NoError(t, err)
		summary, err := r.RunSweep(ctx)
		require.NoError(t, err)

		assert.Zero(t, summary.Checked)
		w, _ := l.GetBalance(ctx, "u1")
		assert.Equal(t, "2000", w.Main.String())
	})

	t.Run("Payments Without User Do Not Fill The Batch", func(t *testing.T) {
		store := memory.New()
		l := ledger.New(store, zap.NewNop())
		verifier := providermocks.NewVerifier(t)
		verifier.On("Name").Return("flutterwave").Maybe()
		notifier := notifymocks.NewSender(t)
		engine := settlement.New(verifier, store, l, notifier, zap.NewNop())

		for i := 0; i < DefaultBatchSize+10; i++ {
			pendingPayment(t, store, fmt.Sprintf("FUND-ORPHAN-%02d", i), "", "100", time.Hour+time.Duration(i)*time.Second)
		}
		pendingPayment(t, store, "FUND-REAL", "u1", "2000", time.Minute)
		verifier.On("VerifyByReference", mock.Anything, "FUND-REAL").
			Return(&provider.Verification{TxRef: "FUND-REAL", Status: provider.StatusSuccessful, Amount: decimal.NewFromInt(2000)}, nil).Once()
		notifier.On("Send", mock.Anything, "u1", "Wallet funded", mock.Anything).Once()

		summary, err := New(store, engine, "flutterwave", 0, 0, zap.NewNop()).RunSweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, Summary{Checked: 1, Credited: 1}, summary)
		w, err := l.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "2000", w.Main.String())
	})

	t.Run("Storage Error", func(t *testing.T) {
		_, err := New(failingPayments{}, nil, "flutterwave", 0, 0, zap.NewNop()).RunSweep(ctx)
		assert.ErrorContains(t, err, "failed to list pending payments")
	})
}

type failingPayments struct{}

func (failingPayments) GetPayment(context.Context, string) (*models.Payment, error) {
	return nil, errors.New("unavailable")
}

func (failingPayments) ListPendingPayments(context.Context, string, int32) ([]models.Payment, error) {
	return nil, errors.New("unavailable")
}

// countingSettler records the highest number of calls in flight at once.
type countingSettler struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int64
}

func (s *countingSettler) CreditIfValid(context.Context, string, decimal.Decimal, string) (*settlement.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return &settlement.Result{Success: true, AlreadySettled: true}, nil
}

func TestRunSweepBounds(t *testing.T) {
	store := memory.New()
	for i := 0; i < 60; i++ {
		pendingPayment(t, store, fmt.Sprintf("FUND-%02d", i), "u1", "100", time.Duration(60-i)*time.Second)
	}
	settler := &countingSettler{}

	summary, err := New(store, settler, "flutterwave", 0, 3, zap.NewNop()).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, summary.Checked)
	assert.Equal(t, int64(DefaultBatchSize), settler.calls.Load())
	assert.LessOrEqual(t, settler.peak, 3)
}

func TestRun(t *testing.T) {
	store := memory.New()
	pendingPayment(t, store, "FUND-1", "u1", "100", 0)
	settler := &countingSettler{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		New(store, settler, "flutterwave", 0, 0, zap.NewNop()).Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return settler.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
