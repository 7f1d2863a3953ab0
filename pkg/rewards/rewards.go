// Package rewards applies cashback and referral bonuses after a successful
// purchase.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/notify"
	"github.com/chris/vtu-ledger/pkg/scheduler"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the part of the wallet ledger rewards need.
type Ledger interface {
	CreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, bucket models.Bucket, description string, opts ...ledger.EntryOption) (decimal.Decimal, error)
}

// SettingsProvider returns the current reward settings.
type SettingsProvider interface {
	RewardSettings(ctx context.Context) (models.RewardSettings, error)
}

// ReferrerLookup finds who referred a user. It returns "" when nobody did.
type ReferrerLookup interface {
	ReferrerOf(ctx context.Context, userID string) (string, error)
}

// Budget tracks referral payouts per calendar day.
type Budget interface {
	Used(ctx context.Context, day time.Time) (decimal.Decimal, error)
	Add(ctx context.Context, day time.Time, amount decimal.Decimal) error
}

type Processor struct {
	ledger    Ledger
	settings  SettingsProvider
	referrers ReferrerLookup
	budget    Budget
	notifier  notify.Sender
	logger    *zap.Logger
	now       func() time.Time
}

func NewProcessor(l Ledger, settings SettingsProvider, referrers ReferrerLookup, budget Budget, notifier notify.Sender, logger *zap.Logger) *Processor {
	return &Processor{
		ledger:    l,
		settings:  settings,
		referrers: referrers,
		budget:    budget,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

var _ scheduler.Processor = (*Processor)(nil)

// Process applies one reward job. Redelivered jobs are no-ops because each
// credit carries a reference derived from the transaction id.
func (p *Processor) Process(ctx context.Context, job models.RewardJob) error {
	settings, err := p.settings.RewardSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reward settings: %w", err)
	}

	switch job.Kind {
	case models.RewardCashback:
		return p.cashback(ctx, job, settings)
	case models.RewardReferral:
		return p.referral(ctx, job, settings)
	default:
		return fmt.Errorf("unknown reward kind %q", job.Kind)
	}
}

func (p *Processor) cashback(ctx context.Context, job models.RewardJob, settings models.RewardSettings) error {
	if !settings.CashbackEnabled {
		return nil
	}
	amount := job.Amount.Mul(settings.CashbackRate).Round(2)
	if !amount.IsPositive() {
		return nil
	}

	_, err := p.ledger.Credit(ctx, job.UserID, amount, models.BucketCashback,
		fmt.Sprintf("Cashback on %s purchase", job.TransactionType), ledger.WithReference("CB-"+job.TransactionID))
	if errors.Is(err, errs.ErrDuplicateEntry) {
		p.logger.Debug("cashback already applied", zap.String("transaction_id", job.TransactionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to credit cashback: %w", err)
	}

	p.logger.Info("cashback credited",
		zap.String("user_id", job.UserID), zap.String("transaction_id", job.TransactionID), zap.String("amount", amount.String()))
	return nil
}

// referral pays the referrer unless today's budget would be exceeded. The
// budget read and increment are separate calls, so concurrent payouts can
// overshoot it slightly.
func (p *Processor) referral(ctx context.Context, job models.RewardJob, settings models.RewardSettings) error {
	if !settings.ReferralEnabled {
		return nil
	}
	referrer, err := p.referrers.ReferrerOf(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up referrer: %w", err)
	}
	if referrer == "" || referrer == job.UserID {
		return nil
	}

	bonus := job.Amount.Mul(settings.ReferralRate).Round(2)
	if !bonus.IsPositive() {
		return nil
	}

	day := p.now().UTC()
	used, err := p.budget.Used(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to read referral budget: %w", err)
	}
	log := p.logger.With(zap.String("referrer_id", referrer), zap.String("transaction_id", job.TransactionID))

	if used.Add(bonus).GreaterThan(settings.ReferralDailyBudget) {
		log.Info("referral budget exhausted", zap.String("used", used.String()), zap.String("bonus", bonus.String()))
		p.notifier.Send(ctx, referrer, "Referral bonus missed",
			fmt.Sprintf("A user you referred made a purchase, but today's referral bonus budget of %s has been reached.", settings.ReferralDailyBudget.StringFixed(2)))
		return nil
	}

	if _, err := p.ledger.CreateWallet(ctx, referrer); err != nil {
		return fmt.Errorf("failed to ensure referrer wallet: %w", err)
	}
	_, err = p.ledger.Credit(ctx, referrer, bonus, models.BucketReferral,
		fmt.Sprintf("Referral bonus from %s purchase", job.TransactionType), ledger.WithReference("RF-"+job.TransactionID))
	if errors.Is(err, errs.ErrDuplicateEntry) {
		log.Debug("referral bonus already applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to credit referral bonus: %w", err)
	}

	if err := p.budget.Add(ctx, day, bonus); err != nil {
		log.Error("failed to record referral budget usage", zap.Error(err))
	}
	log.Info("referral bonus credited", zap.String("amount", bonus.String()))
	p.notifier.Send(ctx, referrer, "Referral bonus",
		fmt.Sprintf("You earned %s from a referral purchase.", bonus.StringFixed(2)))
	return nil
}
