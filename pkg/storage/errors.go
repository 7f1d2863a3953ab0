package storage

import "errors"

// ErrWalletNotFound is returned when no wallet exists for the user.
var ErrWalletNotFound = errors.New("wallet not found")

// ErrWalletExists is returned by CreateWallet when the user already has a wallet.
var ErrWalletExists = errors.New("wallet already exists")

// ErrVersionConflict is returned when a wallet changed between read and commit.
var ErrVersionConflict = errors.New("wallet version conflict")

// ErrDuplicateEntry is returned when a ledger entry with the same reference is already recorded.
var ErrDuplicateEntry = errors.New("ledger entry already exists")

// ErrTransactionNotFound is returned when no transaction has the requested id.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrDuplicateTransaction is returned when a transaction with the same id already exists.
var ErrDuplicateTransaction = errors.New("transaction already exists")

// ErrTransactionNotPending is returned when a status update targets a transaction that already settled.
var ErrTransactionNotPending = errors.New("transaction is not pending")

// ErrPaymentNotFound is returned when no payment has the requested reference.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrPaymentExists is returned when a payment with the same reference is already registered.
var ErrPaymentExists = errors.New("payment already exists")

// ErrPaymentNotPending is returned when a payment already left the pending state.
var ErrPaymentNotPending = errors.New("payment is not pending")
