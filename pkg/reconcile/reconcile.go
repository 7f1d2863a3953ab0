// Package reconcile periodically re-verifies pending payments so deposits
// whose webhook never arrived still get credited.
package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/settlement"
	"github.com/chris/vtu-ledger/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 10
)

// Settler is the part of the settlement engine a sweep drives.
type Settler interface {
	CreditIfValid(ctx context.Context, referenceOrID string, expectedAmount decimal.Decimal, userID string) (*settlement.Result, error)
}

// Summary counts what one sweep did.
type Summary struct {
	Checked  int
	Credited int
	Failed   int
	Skipped  int
	Errors   int
}

type Reconciler struct {
	payments    storage.PaymentReader
	settler     Settler
	provider    string
	batchSize   int32
	concurrency int
	logger      *zap.Logger
}

// New builds a reconciler for one provider's payments. Non-positive sizes
// fall back to the defaults.
func New(payments storage.PaymentReader, settler Settler, provider string, batchSize int32, concurrency int, logger *zap.Logger) *Reconciler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Reconciler{
		payments:    payments,
		settler:     settler,
		provider:    provider,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunSweep processes one batch of pending payments. Errors on individual
// payments are logged and counted; only failing to list the batch is
// returned.
func (r *Reconciler) RunSweep(ctx context.Context) (Summary, error) {
	pending, err := r.payments.ListPendingPayments(ctx, r.provider, r.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list pending payments: %w", err)
	}

	var credited, failed, skipped, errored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, p := range pending {
		if p.UserID == "" {
			r.logger.Warn("skipping payment without user", zap.String("tx_ref", p.TxRef))
			skipped.Add(1)
			continue
		}
		p := p
		g.Go(func() error {
			switch outcome := r.settle(gctx, p); outcome {
			case outcomeCredited:
				credited.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeError:
				errored.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Checked:  len(pending),
		Credited: int(credited.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
		Errors:   int(errored.Load()),
	}
	r.logger.Info("reconciliation sweep finished",
		zap.String("provider", r.provider),
		zap.Int("checked", summary.Checked),
		zap.Int("credited", summary.Credited),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCredited
	outcomeFailed
	outcomeError
)

func (r *Reconciler) settle(ctx context.Context, p models.Payment) outcome {
	log := r.logger.With(zap.String("tx_ref", p.TxRef), zap.String("user_id", p.UserID))

	res, err := r.settler.CreditIfValid(ctx, p.TxRef, p.Amount, p.UserID)
	if err != nil {
		log.Error("failed to reconcile payment", zap.Error(err))
		return outcomeError
	}
	switch {
	case res.Success && !res.AlreadySettled:
		log.Info("payment credited by reconciliation", zap.String("amount", p.Amount.String()))
		return outcomeCredited
	case !res.Success:
		log.Info("payment marked failed by reconciliation")
		return outcomeFailed
	}
	return outcomeUnchanged
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunSweep(ctx); err != nil {
			r.logger.Error("reconciliation sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
