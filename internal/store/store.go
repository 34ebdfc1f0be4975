// Package store keeps the settled payment result of each order.
package store

import (
	"errors"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// ErrNotFound is returned when no result is stored for an order.
var ErrNotFound = errors.New("payment result not found")

// replaces reports whether next may overwrite prev. Once an order has a
// successful result nothing else replaces it, so a stale cancel from another
// session cannot hide a charge.
func replaces(prev, next model.PaymentResult) bool {
	return prev.Outcome != model.OutcomeSuccess || next.Outcome == model.OutcomeSuccess && prev.TransactionID == next.TransactionID
}
