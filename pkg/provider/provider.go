// Package provider defines how a payment provider verifies an external
// deposit. Adapters live in subpackages.
package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// StatusSuccessful is the normalized status of a settled charge.
const StatusSuccessful = "successful"

// ErrReferenceNotFound is returned when the provider has no record of the
// reference or id. It is terminal: retrying will not change the answer.
var ErrReferenceNotFound = errors.New("provider reference not found")

// Verification is a provider's answer normalized across adapters.
type Verification struct {
	ID                string
	TxRef             string
	Status            string
	Amount            decimal.Decimal
	Currency          string
	ProcessorResponse string
	Raw               json.RawMessage
}

// Successful reports whether the charge settled.
func (v *Verification) Successful() bool {
	return v != nil && v.Status == StatusSuccessful
}

// Verifier queries a payment provider for the state of a charge.
type Verifier interface {
	Name() string
	VerifyByID(ctx context.Context, id string) (*Verification, error)
	VerifyByReference(ctx context.Context, txRef string) (*Verification, error)
}
