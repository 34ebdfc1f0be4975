package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Payment method identifiers known to the reference catalog.
const (
	MethodCreditCard = "credit_card"
	MethodPix        = "pix"
	MethodBoleto     = "boleto"
	MethodWallet     = "wallet"
)

// LineItem is a single product line of an order.
type LineItem struct {
	ID        string          `json:"id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Total returns unit price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is the read-only cart snapshot a checkout session charges for.
type Order struct {
	ID           string          `json:"id"`
	Items        []LineItem      `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

// Amount is the order amount before payment method fees and discounts.
func (o Order) Amount() decimal.Decimal {
	return o.Subtotal.Add(o.ShippingCost)
}

// Validate checks the structural invariants of an order.
func (o Order) Validate() error {
	if o.ID == "" {
		return errors.New("order id is required")
	}
	sum := decimal.Zero
	for i, li := range o.Items {
		if li.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d (%s): unit price must not be negative", i, li.ID)
		}
		if li.Quantity < 1 {
			return fmt.Errorf("item %d (%s): quantity must be at least 1", i, li.ID)
		}
		sum = sum.Add(li.Total())
	}
	if o.Subtotal.IsNegative() {
		return errors.New("subtotal must not be negative")
	}
	if len(o.Items) > 0 && !sum.Equal(o.Subtotal) {
		return fmt.Errorf("subtotal %s does not match line items total %s", o.Subtotal, sum)
	}
	if o.ShippingCost.IsNegative() {
		return errors.New("shipping cost must not be negative")
	}
	return nil
}

// PaymentMethod describes a payment option and its pricing rules.
type PaymentMethod struct {
	ID                   string          `json:"id"`
	Label                string          `json:"label"`
	ProcessingFeeFixed   decimal.Decimal `json:"processing_fee_fixed"`
	DiscountRate         decimal.Decimal `json:"discount_rate"`
	SupportsInstallments bool            `json:"supports_installments"`
	MaxInstallments      int             `json:"max_installments"`
}

// Validate checks the catalog invariants of a payment method.
func (m PaymentMethod) Validate() error {
	if m.ID == "" {
		return errors.New("method id is required")
	}
	if m.ProcessingFeeFixed.IsNegative() {
		return fmt.Errorf("method %s: processing fee must not be negative", m.ID)
	}
	if m.DiscountRate.IsNegative() || m.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("method %s: discount rate must be between 0 and 1", m.ID)
	}
	if m.MaxInstallments < 1 {
		return fmt.Errorf("method %s: max installments must be at least 1", m.ID)
	}
	return nil
}

// BillingAddress is the optional billing address paired with a card instrument.
type BillingAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country"`
}
