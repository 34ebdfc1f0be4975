// Package pricing computes what a customer pays for an order with a given
// payment method. The pipeline is fixed: the processing fee is added first and
// the discount rate applies to the fee-inclusive amount. Intermediate values keep
// full precision; rounding to currency places happens only in Display and in
// the installment split.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

var one = decimal.NewFromInt(1)

// ErrInvalidInstallments is returned when an installment count is below 1.
var ErrInvalidInstallments = errors.New("installments must be at least 1")

// Total is the payable amount for an order and method.
type Total struct {
	// Base is the order amount the computation started from.
	Base decimal.Decimal `json:"base"`
	// Fee is the fixed processing fee added to Base.
	Fee decimal.Decimal `json:"fee"`
	// Discount is the amount removed by the discount rate.
	Discount decimal.Decimal `json:"discount"`
	// Exact is the unrounded payable amount.
	Exact decimal.Decimal `json:"-"`
	// Installments is the number of installments the total is split into.
	Installments int `json:"installments"`
}

// Compute returns (amount + fee) * (1 - discountRate) for the method.
// Installments is coerced to 1 when the method does not support installments.
func Compute(amount decimal.Decimal, method model.PaymentMethod, installments int) (Total, error) {
	if installments < 1 {
		return Total{}, ErrInvalidInstallments
	}
	if !method.SupportsInstallments {
		installments = 1
	}

	t := Total{Base: amount, Fee: decimal.Zero, Discount: decimal.Zero, Installments: installments}

	base := amount
	if method.ProcessingFeeFixed.IsPositive() {
		t.Fee = method.ProcessingFeeFixed
		base = base.Add(method.ProcessingFeeFixed)
	}
	if method.DiscountRate.IsPositive() {
		discounted := base.Mul(one.Sub(method.DiscountRate))
		t.Discount = base.Sub(discounted)
		base = discounted
	}
	t.Exact = base
	return t, nil
}

// Display returns the payable amount rounded half-up to currency places.
// This is the amount charged.
func (t Total) Display() decimal.Decimal {
	return Round(t.Exact)
}

// InstallmentValues splits the display total into the total's installment count.
func (t Total) InstallmentValues() []decimal.Decimal {
	values, _ := Split(t.Display(), t.Installments)
	return values
}

// Round rounds half-up (away from zero) to currency places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(config.CurrencyPlaces)
}

// Split divides total into n installments. Every installment but the last is
// total/n truncated to currency places; the last absorbs the remainder so the
// installments sum to total exactly.
func Split(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidInstallments, n)
	}
	count := decimal.NewFromInt(int64(n))
	each := total.DivRound(count, config.CurrencyPlaces+4).Truncate(config.CurrencyPlaces)

	values := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		values[i] = each
		allocated = allocated.Add(each)
	}
	values[n-1] = total.Sub(allocated)
	return values, nil
}
