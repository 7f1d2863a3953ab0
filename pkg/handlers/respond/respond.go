// Package respond writes JSON responses for the HTTP handlers.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chris/vtu-ledger/pkg/api"
	"github.com/chris/vtu-ledger/pkg/errs"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

// Error writes err as an api.Error. Errors without a kind are reported as
// internal without their message.
func Error(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	msg := err.Error()
	if kind == errs.Other {
		msg = "internal error"
	}
	JSON(w, Status(kind), api.Error{Kind: string(kind), Message: msg})
}

// BadRequest reports a body or parameter that could not be parsed.
func BadRequest(w http.ResponseWriter, format string, args ...any) {
	JSON(w, http.StatusBadRequest, api.Error{Kind: string(errs.Invalid), Message: fmt.Sprintf(format, args...)})
}

// Status maps an error kind to an HTTP status code.
func Status(kind errs.Kind) int {
	switch kind {
	case errs.Invalid, errs.InvalidBucket, errs.InvalidTransactionType:
		return http.StatusBadRequest
	case errs.Unauthorized:
		return http.StatusUnauthorized
	case errs.WalletNotFound, errs.NotFound, errs.ProviderReferenceNotFound:
		return http.StatusNotFound
	case errs.DuplicateEntry:
		return http.StatusConflict
	case errs.InsufficientFunds, errs.TransactionFailed:
		return http.StatusUnprocessableEntity
	case errs.VendorFailure, errs.ProviderVerificationError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
