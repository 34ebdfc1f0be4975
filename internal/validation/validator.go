package validation

import (
	"strings"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Field names used in FieldError.
const (
	FieldInstrument   = "instrument"
	FieldNumber       = "number"
	FieldHolderName   = "holder_name"
	FieldExpiry       = "expiry"
	FieldCVV          = "cvv"
	FieldStreet       = "billing_address.street"
	FieldInstallments = "installments"
)

// FieldError attaches a message to a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating an instrument. It is valid when it carries no errors.
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// Valid reports whether no field errors were found.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Has reports whether the result carries an error for the field.
func (r Result) Has(field string) bool {
	for _, fe := range r.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (r *Result) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Validator checks payment instruments structurally. It never contacts a provider.
type Validator struct {
	minDigits int
	maxDigits int
	luhn      bool
	now       func() time.Time
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithoutLuhn disables the card number checksum.
func WithoutLuhn() Option {
	return func(v *Validator) { v.luhn = false }
}

// New creates a Validator with the default card rules.
func New(opts ...Option) *Validator {
	v := &Validator{
		minDigits: config.CardMinDigits,
		maxDigits: config.CardMaxDigits,
		luhn:      true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the rules for the method. Methods other than credit_card are
// confirmation-only and accept a nil instrument or their own placeholder.
func (v *Validator) Validate(method model.PaymentMethod, instrument model.Instrument, billing *model.BillingAddress) Result {
	var r Result

	if method.ID != model.MethodCreditCard {
		if instrument != nil && instrument.Method() != method.ID {
			r.add(FieldInstrument, "instrument does not match payment method")
		}
		return r
	}

	card, ok := instrument.(*model.CardInstrument)
	if !ok || card == nil {
		r.add(FieldInstrument, "card details required")
		return r
	}

	v.validateNumber(card, &r)

	if strings.TrimSpace(card.HolderName) == "" {
		r.add(FieldHolderName, "holder name required")
	}

	v.validateExpiry(card, &r)

	switch {
	case len(card.CVV) < 3:
		r.add(FieldCVV, "cvv required")
	case len(card.CVV) > 4 || !allDigits(card.CVV):
		r.add(FieldCVV, "invalid cvv")
	}

	if billing != nil && strings.TrimSpace(billing.Street) == "" {
		r.add(FieldStreet, "street required")
	}
	return r
}

func (v *Validator) validateNumber(card *model.CardInstrument, r *Result) {
	digits := card.Digits()
	if len(digits) < v.minDigits || len(digits) > v.maxDigits || !allDigits(digits) {
		r.add(FieldNumber, "invalid card number")
		return
	}
	if v.luhn && !luhnValid(digits) {
		r.add(FieldNumber, "invalid card number")
	}
}

func (v *Validator) validateExpiry(card *model.CardInstrument, r *Result) {
	if card.ExpiryMonth == 0 || card.ExpiryYear == 0 {
		r.add(FieldExpiry, "expiry required")
		return
	}
	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		r.add(FieldExpiry, "invalid expiry month")
		return
	}
	if card.ExpiryYear < 1000 {
		r.add(FieldExpiry, "expiry year must have four digits")
		return
	}
	now := v.now()
	year, month := now.Year(), int(now.Month())
	if card.ExpiryYear < year || (card.ExpiryYear == year && card.ExpiryMonth < month) {
		r.add(FieldExpiry, "card expired")
	}
}

// ValidateInstallments checks n against the method's installment rules.
func ValidateInstallments(method model.PaymentMethod, n int) Result {
	var r Result
	if !method.SupportsInstallments {
		return r
	}
	if n < 1 || n > method.MaxInstallments {
		r.add(FieldInstallments, "installments out of range")
	}
	return r
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}
