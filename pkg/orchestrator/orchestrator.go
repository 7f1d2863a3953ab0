// Package orchestrator runs a VTU purchase end to end: debit, vendor call,
// then either reward dispatch or refund.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/scheduler"
	"github.com/chris/vtu-ledger/pkg/storage"
	"github.com/chris/vtu-ledger/pkg/vtu"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultVendorTimeout = 15 * time.Second
	defaultListLimit     = 20
)

// Ledger is the part of the wallet ledger a purchase touches.
type Ledger interface {
	Debit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)
}

// PurchaseRequest is a user's request to buy a VTU service.
type PurchaseRequest struct {
	UserID    string
	Type      models.TransactionType
	Amount    decimal.Decimal
	Details   models.ServiceDetails
	RequestID string
}

type Orchestrator struct {
	ledger        Ledger
	txs           storage.TransactionStore
	vendors       vtu.Registry
	scheduler     scheduler.Scheduler
	logger        *zap.Logger
	vendorTimeout time.Duration
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVendorTimeout bounds each vendor call.
func WithVendorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.vendorTimeout = d
		}
	}
}

func New(l Ledger, txs storage.TransactionStore, vendors vtu.Registry, sched scheduler.Scheduler, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:        l,
		txs:           txs,
		vendors:       vendors,
		scheduler:     sched,
		logger:        logger,
		vendorTimeout: defaultVendorTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InitiateTransaction performs a purchase. A request carrying a RequestID
// that was already processed returns the stored transaction without touching
// the wallet. A failed purchase is returned together with a
// TransactionFailed error.
func (o *Orchestrator) InitiateTransaction(ctx context.Context, req PurchaseRequest) (*models.Transaction, error) {
	vendor, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	txID := uuid.NewString()
	if req.RequestID != "" {
		txID = models.TransactionIDFor(req.UserID, req.RequestID)
		existing, err := o.txs.GetTransaction(ctx, txID)
		switch {
		case err == nil:
			o.logger.Info("replaying transaction", zap.String("transaction_id", txID), zap.String("request_id", req.RequestID))
			return replay(existing)
		case !errors.Is(err, storage.ErrTransactionNotFound):
			return nil, fmt.Errorf("failed to look up transaction: %w", err)
		}
	}

	log := o.logger.With(zap.String("transaction_id", txID), zap.String("user_id", req.UserID), zap.String("type", string(req.Type)))

	if _, err := o.ledger.Debit(ctx, req.UserID, req.Amount, models.BucketMain, fmt.Sprintf("%s purchase", req.Type)); err != nil {
		return nil, err
	}

	// The wallet has been debited; from here on the purchase has to reach a
	// recorded outcome even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	now := o.now().UTC()
	tx := &models.Transaction{
		ID:        txID,
		UserID:    req.UserID,
		Type:      req.Type,
		Amount:    req.Amount,
		Details:   req.Details,
		RequestID: req.RequestID,
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.txs.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrDuplicateTransaction) {
			log.Warn("concurrent duplicate request, returning debit")
			if rerr := o.refund(ctx, tx); rerr != nil {
				return nil, rerr
			}
			existing, gerr := o.txs.GetTransaction(ctx, txID)
			if gerr != nil {
				return nil, fmt.Errorf("failed to load duplicate transaction: %w", gerr)
			}
			return replay(existing)
		}
		log.Error("failed to record transaction, returning debit", zap.Error(err))
		if rerr := o.refund(ctx, tx); rerr != nil {
			return nil, rerr
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	result, reason := o.purchase(ctx, vendor, tx)
	if reason != "" {
		log.Warn("vendor purchase failed", zap.String("reason", reason))
		return o.fail(ctx, tx, reason, result)
	}

	update := storage.TransactionUpdate{
		Status:            models.TransactionSuccess,
		ProviderReference: result.Reference,
		ProviderResponse:  string(result.Raw),
		UpdatedAt:         o.now().UTC(),
	}
	if err := o.txs.UpdateTransactionStatus(ctx, tx.ID, update); err != nil {
		// The vendor delivered, so the debit stands. The row stays pending for
		// manual review.
		log.Error("failed to mark transaction successful", zap.Error(err), zap.String("provider_reference", result.Reference))
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	applyUpdate(tx, update)
	log.Info("transaction successful", zap.String("amount", tx.Amount.String()), zap.String("provider_reference", result.Reference))

	o.dispatchRewards(ctx, tx)
	return tx, nil
}

// GetTransactions lists a user's purchases, newest first.
func (o *Orchestrator) GetTransactions(ctx context.Context, userID string, limit int32) ([]models.Transaction, error) {
	if userID == "" {
		return nil, errs.E(errs.Invalid, "user id cannot be empty", nil)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	txs, err := o.txs.ListTransactionsByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (o *Orchestrator) validate(req PurchaseRequest) (vtu.Vendor, error) {
	if !req.Type.Valid() {
		return nil, errs.E(errs.InvalidTransactionType, fmt.Sprintf("unknown transaction type %q", req.Type), nil)
	}
	if req.Details == nil || req.Details.ServiceType() != req.Type {
		return nil, errs.E(errs.InvalidTransactionType, fmt.Sprintf("details do not describe a %s purchase", req.Type), nil)
	}
	vendor, ok := o.vendors[req.Type]
	if !ok {
		return nil, errs.E(errs.InvalidTransactionType, fmt.Sprintf("no vendor serves %s", req.Type), nil)
	}

	v := errs.ValidationErrs()
	if req.UserID == "" {
		v.Add("user_id", "cannot be empty")
	}
	if !req.Amount.IsPositive() {
		v.Add("amount", "must be greater than zero")
	}
	if err := req.Details.Validate(); err != nil {
		v.Add("details", err.Error())
	}
	return vendor, v.Err()
}

// purchase calls the vendor and returns a non-empty reason when the purchase
// did not go through.
func (o *Orchestrator) purchase(ctx context.Context, vendor vtu.Vendor, tx *models.Transaction) (*vtu.Result, string) {
	ctx, cancel := context.WithTimeout(ctx, o.vendorTimeout)
	defer cancel()

	result, err := vendor.Purchase(ctx, vtu.Request{
		RequestID: tx.ID,
		Type:      tx.Type,
		Amount:    tx.Amount,
		Details:   tx.Details,
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, "vendor timed out"
	case err != nil:
		return nil, err.Error()
	case result == nil:
		return nil, "vendor returned no result"
	case !result.Success:
		if result.Message == "" {
			return result, "declined by vendor"
		}
		return result, result.Message
	}
	return result, ""
}

func (o *Orchestrator) fail(ctx context.Context, tx *models.Transaction, reason string, result *vtu.Result) (*models.Transaction, error) {
	if err := o.refund(ctx, tx); err != nil {
		return nil, err
	}

	update := storage.TransactionUpdate{
		Status:        models.TransactionFailed,
		FailureReason: reason,
		UpdatedAt:     o.now().UTC(),
	}
	if result != nil {
		update.ProviderReference = result.Reference
		update.ProviderResponse = string(result.Raw)
	}
	if err := o.txs.UpdateTransactionStatus(ctx, tx.ID, update); err != nil {
		o.logger.Error("failed to mark transaction failed", zap.String("transaction_id", tx.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	applyUpdate(tx, update)
	return tx, errs.TransactionFailedErr(reason)
}

func (o *Orchestrator) refund(ctx context.Context, tx *models.Transaction) error {
	_, err := o.ledger.Credit(ctx, tx.UserID, tx.Amount, models.BucketMain, fmt.Sprintf("Refund: Failed %s", tx.Type))
	if err != nil {
		o.logger.Error("refund failed, transaction left pending",
			zap.String("transaction_id", tx.ID), zap.String("user_id", tx.UserID), zap.String("amount", tx.Amount.String()), zap.Error(err))
		return fmt.Errorf("failed to refund transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (o *Orchestrator) dispatchRewards(ctx context.Context, tx *models.Transaction) {
	now := o.now().UTC()
	for _, kind := range []models.RewardKind{models.RewardCashback, models.RewardReferral} {
		job := models.RewardJob{
			ID:              string(kind) + "-" + tx.ID,
			Kind:            kind,
			UserID:          tx.UserID,
			TransactionID:   tx.ID,
			TransactionType: tx.Type,
			Amount:          tx.Amount,
			CreatedAt:       now,
		}
		if err := o.scheduler.ScheduleReward(ctx, job); err != nil {
			o.logger.Error("failed to schedule reward", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func replay(tx *models.Transaction) (*models.Transaction, error) {
	if tx.Status == models.TransactionFailed {
		return tx, errs.TransactionFailedErr(tx.FailureReason)
	}
	return tx, nil
}

func applyUpdate(tx *models.Transaction, u storage.TransactionUpdate) {
	tx.Status = u.Status
	tx.ProviderReference = u.ProviderReference
	tx.ProviderResponse = u.ProviderResponse
	tx.FailureReason = u.FailureReason
	tx.UpdatedAt = u.UpdatedAt
}
