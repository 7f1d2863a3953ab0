// Package ledger owns wallet balances. Every balance change goes through a
// single commit that updates the wallet and appends the ledger entries
// explaining it, so the entry log always replays to the stored balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 10
	defaultHistoryLimit = 20
)

// Store is the subset of storage the ledger needs.
type Store interface {
	storage.WalletStore
	storage.LedgerReader
}

// Service implements the wallet ledger.
type Service struct {
	store       Store
	logger      *zap.Logger
	locks       *keyedMutex
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts bounds the optimistic retry loop.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      logger,
		locks:       newKeyedMutex(),
		maxAttempts: defaultMaxAttempts,
		backoff:     5 * time.Millisecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type entryOptions struct {
	reference string
}

// EntryOption customizes the ledger entry written by Credit or Debit.
type EntryOption func(*entryOptions)

// WithReference pins the entry reference. A second write with the same
// reference for the same user fails with errs.ErrDuplicateEntry, which makes
// retried credits safe.
func WithReference(ref string) EntryOption {
	return func(o *entryOptions) { o.reference = ref }
}

// CreateWallet creates an empty wallet. Calling it for an existing user is a
// no-op that returns the stored wallet.
func (s *Service) CreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if userID == "" {
		return nil, errs.E(errs.Invalid, "user id cannot be empty", nil)
	}
	err := s.store.CreateWallet(ctx, models.NewWallet(userID, s.now().UTC()))
	if err != nil && !errors.Is(err, storage.ErrWalletExists) {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	if err == nil {
		s.logger.Info("wallet created", zap.String("user_id", userID))
	}
	return s.getWallet(ctx, userID)
}

// GetBalance returns all three balances, creating an empty wallet on first use.
func (s *Service) GetBalance(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.getWallet(ctx, userID)
	if errors.Is(err, errs.ErrWalletNotFound) {
		return s.CreateWallet(ctx, userID)
	}
	return w, err
}

// Credit adds amount to a bucket and returns the bucket's new balance.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...EntryOption) (decimal.Decimal, error) {
	if err := validate(amount, bucket); err != nil {
		return decimal.Zero, err
	}
	o := applyEntryOptions(opts)

	w, err := s.mutate(ctx, userID, nil, func(w *models.Wallet, now time.Time) ([]models.LedgerEntry, error) {
		return []models.LedgerEntry{apply(w, models.Credit, amount, bucket, description, o.reference, now)}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance(bucket), nil
}

// Debit removes amount from a bucket and returns the bucket's new balance.
// Nothing is written when the bucket holds less than amount.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...EntryOption) (decimal.Decimal, error) {
	if err := validate(amount, bucket); err != nil {
		return decimal.Zero, err
	}
	o := applyEntryOptions(opts)

	w, err := s.mutate(ctx, userID, nil, func(w *models.Wallet, now time.Time) ([]models.LedgerEntry, error) {
		if w.Balance(bucket).LessThan(amount) {
			return nil, errs.E(errs.InsufficientFunds,
				fmt.Sprintf("insufficient %s balance: have %s, need %s", bucket, w.Balance(bucket), amount), nil)
		}
		return []models.LedgerEntry{apply(w, models.Debit, amount, bucket, description, o.reference, now)}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance(bucket), nil
}

// Transfer moves amount from the cashback or referral bucket into main.
func (s *Service) Transfer(ctx context.Context, userID string, amount decimal.Decimal, from, to models.Bucket) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, errs.InvalidAmountErr(amount.String())
	}
	if (from != models.BucketCashback && from != models.BucketReferral) || to != models.BucketMain {
		return nil, errs.E(errs.InvalidBucket, fmt.Sprintf("cannot transfer from %q to %q", from, to), nil)
	}

	return s.mutate(ctx, userID, nil, func(w *models.Wallet, now time.Time) ([]models.LedgerEntry, error) {
		if w.Balance(from).LessThan(amount) {
			return nil, errs.E(errs.InsufficientFunds,
				fmt.Sprintf("insufficient %s balance: have %s, need %s", from, w.Balance(from), amount), nil)
		}
		out := apply(w, models.Debit, amount, from, fmt.Sprintf("Transfer to %s wallet", to), "", now)
		in := apply(w, models.Credit, amount, to, fmt.Sprintf("Transfer from %s wallet", from), "", now)
		return []models.LedgerEntry{out, in}, nil
	})
}

// GetHistory returns the user's ledger entries, newest first.
func (s *Service) GetHistory(ctx context.Context, userID string, limit int32) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.store.ListLedgerEntries(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// SettleDeposit credits the main bucket and marks the payment successful in
// the same commit. If the payment already left pending the wallet is left
// untouched and storage.ErrPaymentNotPending is returned.
func (s *Service) SettleDeposit(ctx context.Context, userID string, amount decimal.Decimal, settlement storage.PaymentSettlement) (decimal.Decimal, error) {
	if err := validate(amount, models.BucketMain); err != nil {
		return decimal.Zero, err
	}
	description := fmt.Sprintf("Wallet funding %s", settlement.TxRef)

	w, err := s.mutate(ctx, userID, &settlement, func(w *models.Wallet, now time.Time) ([]models.LedgerEntry, error) {
		return []models.LedgerEntry{apply(w, models.Credit, amount, models.BucketMain, description, "", now)}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return w.Main, nil
}

type buildFunc func(w *models.Wallet, now time.Time) ([]models.LedgerEntry, error)

// mutate runs build against a fresh copy of the wallet and commits the result
// conditioned on the version that was read. Callers in this process are
// serialized per user; other processes are caught by the version check.
func (s *Service) mutate(ctx context.Context, userID string, settlement *storage.PaymentSettlement, build buildFunc) (*models.Wallet, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.getWallet(ctx, userID)
		if err != nil {
			return nil, err
		}

		next := *current
		now := s.now().UTC()
		entries, err := build(&next, now)
		if err != nil {
			return nil, err
		}
		next.UpdatedAt = now

		err = s.store.CommitWalletMutation(ctx, storage.WalletMutation{
			Wallet:          next,
			ExpectedVersion: current.Version,
			Entries:         entries,
			Settlement:      settlement,
		})
		switch {
		case err == nil:
			next.Version = current.Version + 1
			return &next, nil
		case errors.Is(err, storage.ErrVersionConflict):
			s.logger.Debug("wallet version conflict, retrying",
				zap.String("user_id", userID), zap.Int("attempt", attempt))
			if err := sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
				return nil, err
			}
		case errors.Is(err, storage.ErrDuplicateEntry):
			return nil, errs.E(errs.DuplicateEntry, "ledger entry already recorded", err)
		default:
			return nil, fmt.Errorf("failed to commit wallet mutation: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to commit wallet mutation for user %s after %d attempts: %w",
		userID, s.maxAttempts, storage.ErrVersionConflict)
}

func (s *Service) getWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if errors.Is(err, storage.ErrWalletNotFound) {
		return nil, errs.E(errs.WalletNotFound, fmt.Sprintf("wallet for user %s not found", userID), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// apply changes w in place and returns the entry describing the change.
func apply(w *models.Wallet, dir models.Direction, amount decimal.Decimal, bucket models.Bucket, description, reference string, now time.Time) models.LedgerEntry {
	before := w.Balance(bucket)
	after := before.Add(amount)
	if dir == models.Debit {
		after = before.Sub(amount)
	}
	w.SetBalance(bucket, after)

	if reference == "" {
		reference = ulid.Make().String()
	}
	return models.LedgerEntry{
		UserID:        w.UserID,
		Direction:     dir,
		Amount:        amount,
		Bucket:        bucket,
		Description:   description,
		Reference:     reference,
		Status:        models.EntryStatusSuccess,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     now,
	}
}

func validate(amount decimal.Decimal, bucket models.Bucket) error {
	if !amount.IsPositive() {
		return errs.InvalidAmountErr(amount.String())
	}
	if !bucket.Valid() {
		return errs.E(errs.InvalidBucket, fmt.Sprintf("unknown bucket %q", bucket), nil)
	}
	return nil
}

func applyEntryOptions(opts []EntryOption) entryOptions {
	var o entryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
