// Package settlement turns a verified external deposit into exactly one wallet
// credit.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/notify"
	"github.com/chris/vtu-ledger/pkg/provider"
	"github.com/chris/vtu-ledger/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the part of the wallet ledger used to credit deposits.
type Ledger interface {
	CreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	SettleDeposit(ctx context.Context, userID string, amount decimal.Decimal, settlement storage.PaymentSettlement) (decimal.Decimal, error)
}

// Result is the outcome of CreditIfValid.
type Result struct {
	Success bool
	// AlreadySettled is set when the payment was credited by an earlier call.
	AlreadySettled bool
	Data           *provider.Verification
	Payment        *models.Payment
}

type Engine struct {
	verifier provider.Verifier
	payments storage.PaymentStore
	ledger   Ledger
	notifier notify.Sender
	logger   *zap.Logger
	now      func() time.Time
}

func New(verifier provider.Verifier, payments storage.PaymentStore, ledger Ledger, notifier notify.Sender, logger *zap.Logger) *Engine {
	return &Engine{
		verifier: verifier,
		payments: payments,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Provider returns the name of the provider this engine verifies against.
func (e *Engine) Provider() string { return e.verifier.Name() }

// RegisterPayment records a pending deposit so it can be settled later.
func (e *Engine) RegisterPayment(ctx context.Context, txRef, userID string, amount decimal.Decimal) (*models.Payment, error) {
	ve := errs.ValidationErrs()
	if txRef == "" {
		ve.Add("tx_ref", "cannot be empty")
	}
	if userID == "" {
		ve.Add("user_id", "cannot be empty")
	}
	if !amount.IsPositive() {
		ve.Add("amount", "must be greater than zero")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	p := &models.Payment{
		TxRef:     txRef,
		UserID:    userID,
		Amount:    amount,
		Status:    models.PaymentPending,
		Provider:  e.verifier.Name(),
		CreatedAt: e.now().UTC(),
	}
	if err := e.payments.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, storage.ErrPaymentExists) {
			return nil, errs.E(errs.Invalid, fmt.Sprintf("payment %s already registered", txRef), err)
		}
		return nil, fmt.Errorf("failed to register payment: %w", err)
	}
	return p, nil
}

// GetPayment returns the stored payment for txRef.
func (e *Engine) GetPayment(ctx context.Context, txRef string) (*models.Payment, error) {
	p, err := e.payments.GetPayment(ctx, txRef)
	if errors.Is(err, storage.ErrPaymentNotFound) {
		return nil, errs.E(errs.NotFound, fmt.Sprintf("payment %s not found", txRef), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// Verify asks the provider about a charge. All-digit input is treated as the
// provider's transaction id, anything else as our tx_ref.
func (e *Engine) Verify(ctx context.Context, referenceOrID string) (*provider.Verification, error) {
	var (
		v   *provider.Verification
		err error
	)
	if isTransactionID(referenceOrID) {
		v, err = e.verifier.VerifyByID(ctx, referenceOrID)
	} else {
		v, err = e.verifier.VerifyByReference(ctx, referenceOrID)
	}
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, provider.ErrReferenceNotFound):
		return nil, errs.E(errs.ProviderReferenceNotFound, fmt.Sprintf("%s has no record of %s", e.verifier.Name(), referenceOrID), err)
	default:
		return nil, errs.E(errs.ProviderVerificationError, fmt.Sprintf("failed to verify %s with %s", referenceOrID, e.verifier.Name()), err)
	}
}

// CreditIfValid verifies the charge and, if it settled for at least
// expectedAmount, credits expectedAmount to the user's main bucket. Repeated
// calls for a payment that already succeeded return the cached success
// without touching the wallet. Transient provider errors are returned so the
// caller can retry later.
//
// The payment the charge resolves to must be registered to userID for
// exactly expectedAmount, otherwise nothing is credited.
func (e *Engine) CreditIfValid(ctx context.Context, referenceOrID string, expectedAmount decimal.Decimal, userID string) (*Result, error) {
	return e.credit(ctx, referenceOrID, expectedAmount, userID, "")
}

// CreditPayment settles p. A non-empty transactionID verifies through the
// provider's id, and the charge it names must carry p's tx_ref.
func (e *Engine) CreditPayment(ctx context.Context, p *models.Payment, transactionID string) (*Result, error) {
	reference := p.TxRef
	if transactionID != "" {
		reference = transactionID
	}
	return e.credit(ctx, reference, p.Amount, p.UserID, p.TxRef)
}

func (e *Engine) credit(ctx context.Context, referenceOrID string, expectedAmount decimal.Decimal, userID, txRef string) (*Result, error) {
	log := e.logger.With(zap.String("reference", referenceOrID), zap.String("user_id", userID))

	// 1. Short-circuit payments we already know the outcome of.
	var payment *models.Payment
	if !isTransactionID(referenceOrID) {
		p, err := e.lookupPayment(ctx, referenceOrID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			if err := owns(p, userID, expectedAmount, txRef); err != nil {
				return nil, err
			}
		}
		if res, done := terminal(p); done {
			return res, nil
		}
		payment = p
	}

	// 2. Ask the provider.
	v, err := e.Verify(ctx, referenceOrID)
	if errors.Is(err, errs.ErrProviderReferenceNotFound) {
		log.Warn("provider has no record of payment, marking failed")
		if payment != nil {
			e.markFailed(ctx, payment.TxRef, err.Error())
		}
		return &Result{Success: false, Payment: payment}, nil
	}
	if err != nil {
		return nil, err
	}

	// 3. Resolve the payment from the provider's tx_ref when we were given an id.
	if payment == nil {
		p, err := e.lookupPayment(ctx, v.TxRef)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, errs.E(errs.NotFound, fmt.Sprintf("payment %s not registered", v.TxRef), storage.ErrPaymentNotFound)
		}
		if err := owns(p, userID, expectedAmount, txRef); err != nil {
			log.Warn("charge belongs to another payment", zap.String("tx_ref", p.TxRef), zap.Error(err))
			return nil, err
		}
		if res, done := terminal(p); done {
			res.Data = v
			return res, nil
		}
		payment = p
	} else if v.TxRef != "" && v.TxRef != payment.TxRef {
		return nil, errs.E(errs.Invalid, fmt.Sprintf("charge %s is for %s, not %s", referenceOrID, v.TxRef, payment.TxRef), nil)
	}

	// 4. Check the verdict.
	if !v.Successful() || v.Amount.LessThan(expectedAmount) {
		log.Info("payment not valid for credit",
			zap.String("provider_status", v.Status),
			zap.String("paid", v.Amount.String()),
			zap.String("expected", expectedAmount.String()))
		e.markFailed(ctx, payment.TxRef, string(v.Raw))
		return &Result{Success: false, Data: v, Payment: payment}, nil
	}

	// 5. Credit and transition the payment together.
	if _, err := e.ledger.CreateWallet(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	settlement := storage.PaymentSettlement{
		TxRef:            payment.TxRef,
		ProviderResponse: string(v.Raw),
		VerifiedAt:       e.now().UTC(),
	}
	balance, err := e.ledger.SettleDeposit(ctx, userID, expectedAmount, settlement)
	if errors.Is(err, storage.ErrPaymentNotPending) {
		log.Info("payment settled concurrently")
		return &Result{Success: true, AlreadySettled: true, Data: v, Payment: payment}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit deposit: %w", err)
	}

	log.Info("payment settled", zap.String("amount", expectedAmount.String()), zap.String("balance", balance.String()))
	e.notifier.Send(ctx, userID, "Wallet funded",
		fmt.Sprintf("Your wallet has been credited with %s. New balance: %s", expectedAmount.StringFixed(2), balance.StringFixed(2)))

	payment.Status = models.PaymentSuccess
	payment.VerifiedAt = &settlement.VerifiedAt
	return &Result{Success: true, Data: v, Payment: payment}, nil
}

// lookupPayment returns nil, nil when the payment is unknown.
func (e *Engine) lookupPayment(ctx context.Context, txRef string) (*models.Payment, error) {
	p, err := e.payments.GetPayment(ctx, txRef)
	if errors.Is(err, storage.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (e *Engine) markFailed(ctx context.Context, txRef, response string) {
	err := e.payments.MarkPaymentFailed(ctx, txRef, response, e.now().UTC())
	if err != nil && !errors.Is(err, storage.ErrPaymentNotPending) {
		e.logger.Error("failed to mark payment failed", zap.String("tx_ref", txRef), zap.Error(err))
	}
}

// owns rejects a payment registered to someone else, for another amount or,
// when txRef is set, under another tx_ref.
func owns(p *models.Payment, userID string, amount decimal.Decimal, txRef string) error {
	switch {
	case txRef != "" && p.TxRef != txRef:
		return errs.E(errs.Invalid, fmt.Sprintf("charge is for payment %s, not %s", p.TxRef, txRef), nil)
	case p.UserID != userID:
		return errs.E(errs.Invalid, fmt.Sprintf("payment %s is not registered to %s", p.TxRef, userID), nil)
	case !p.Amount.Equal(amount):
		return errs.E(errs.Invalid, fmt.Sprintf("payment %s was registered for %s, not %s", p.TxRef, p.Amount, amount), nil)
	}
	return nil
}

// terminal reports the cached result for a payment that left pending.
func terminal(p *models.Payment) (*Result, bool) {
	if p == nil {
		return nil, false
	}
	switch p.Status {
	case models.PaymentSuccess:
		return &Result{Success: true, AlreadySettled: true, Payment: p}, true
	case models.PaymentFailed:
		return &Result{Success: false, Payment: p}, true
	}
	return nil, false
}

func isTransactionID(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
