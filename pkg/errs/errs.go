package errs

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	Other                     Kind = "internal"
	Invalid                   Kind = "invalid_request"
	WalletNotFound            Kind = "wallet_not_found"
	InsufficientFunds         Kind = "insufficient_funds"
	InvalidBucket             Kind = "invalid_bucket"
	InvalidTransactionType    Kind = "invalid_transaction_type"
	VendorFailure             Kind = "vendor_failure"
	TransactionFailed         Kind = "transaction_failed"
	ProviderVerificationError Kind = "provider_verification_error"
	ProviderReferenceNotFound Kind = "provider_reference_not_found"
	DuplicateEntry            Kind = "duplicate_entry"
	NotFound                  Kind = "not_found"
	Unauthorized              Kind = "unauthorized"
)

// Error is a domain error carrying a Kind. Two errors match under errors.Is
// when their kinds are equal, so the sentinels below can be compared against
// any wrapped instance.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E builds an *Error. err may be nil.
func E(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrWalletNotFound            = &Error{Kind: WalletNotFound, Message: "wallet not found"}
	ErrInsufficientFunds         = &Error{Kind: InsufficientFunds, Message: "insufficient funds"}
	ErrInvalidBucket             = &Error{Kind: InvalidBucket, Message: "invalid bucket"}
	ErrInvalidTransactionType    = &Error{Kind: InvalidTransactionType, Message: "invalid transaction type"}
	ErrInvalidRequest            = &Error{Kind: Invalid, Message: "invalid request"}
	ErrVendorFailure             = &Error{Kind: VendorFailure, Message: "vendor failure"}
	ErrTransactionFailed         = &Error{Kind: TransactionFailed, Message: "transaction failed"}
	ErrProviderVerification      = &Error{Kind: ProviderVerificationError, Message: "provider verification error"}
	ErrProviderReferenceNotFound = &Error{Kind: ProviderReferenceNotFound, Message: "provider reference not found"}
	ErrDuplicateEntry            = &Error{Kind: DuplicateEntry, Message: "duplicate ledger entry"}
	ErrNotFound                  = &Error{Kind: NotFound, Message: "not found"}
	ErrUnauthorized              = &Error{Kind: Unauthorized, Message: "unauthorized"}
)

// KindOf returns the Kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// TransactionFailedErr reports a purchase that ended in the failed state.
func TransactionFailedErr(reason string) error {
	return E(TransactionFailed, "transaction failed: "+reason, nil)
}

// InvalidAmountErr is returned for non-positive amounts.
func InvalidAmountErr(amount string) error {
	return E(Invalid, "amount must be greater than zero, got "+amount, nil)
}

// ValidationErrors collects field level problems and reports them as one
// error.
type ValidationErrors struct {
	err error
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{}
}

func (v *ValidationErrors) Add(field, problem string) {
	v.err = multierr.Append(v.err, fmt.Errorf("%s: %s", field, problem))
}

// Err returns nil when nothing was added.
func (v *ValidationErrors) Err() error {
	if v.err == nil {
		return nil
	}
	msgs := make([]string, 0)
	for _, e := range multierr.Errors(v.err) {
		msgs = append(msgs, e.Error())
	}
	return E(Invalid, "validation failed: "+strings.Join(msgs, "; "), v.err)
}
