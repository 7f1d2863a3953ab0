// Package vtu talks to the upstream VTU vendor that actually delivers
// airtime, data bundles, cable subscriptions and electricity tokens.
package vtu

import (
	"context"
	"encoding/json"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Request is one purchase sent to a vendor.
type Request struct {
	RequestID string
	Type      models.TransactionType
	Amount    decimal.Decimal
	Details   models.ServiceDetails
}

// Result is the vendor's verdict.
type Result struct {
	Success   bool
	Reference string
	Message   string
	Raw       json.RawMessage
}

// Vendor performs a purchase. A non-nil error means the outcome is unknown
// or the call failed; a Result with Success false is a definite decline.
type Vendor interface {
	Purchase(ctx context.Context, req Request) (*Result, error)
}

// Registry maps each service type to the vendor that serves it.
type Registry map[models.TransactionType]Vendor

// NewRegistry serves every known type from v.
func NewRegistry(v Vendor) Registry {
	return Registry{
		models.Airtime:     v,
		models.Data:        v,
		models.Cable:       v,
		models.Electricity: v,
	}
}
