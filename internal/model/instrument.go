package model

import (
	"log/slog"
	"strings"
)

// Instrument is the payment credential attached to a checkout session.
// Exactly one concrete type exists per payment method.
type Instrument interface {
	// Method returns the catalog id this instrument belongs to.
	Method() string
	isInstrument()
}

// CardInstrument carries raw card data for structural validation and hand-off
// to the card adapter. It is never persisted.
type CardInstrument struct {
	Number      string
	HolderName  string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

func (*CardInstrument) Method() string { return MethodCreditCard }
func (*CardInstrument) isInstrument()  {}

// Digits returns the card number with whitespace removed.
func (c *CardInstrument) Digits() string {
	return strings.Join(strings.Fields(c.Number), "")
}

// Last4 returns the last four digits of the card number.
func (c *CardInstrument) Last4() string {
	d := c.Digits()
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}

// String masks the card so it is safe to print.
func (c *CardInstrument) String() string {
	return "card ****" + c.Last4()
}

// LogValue keeps the number and CVV out of structured logs.
func (c *CardInstrument) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", MethodCreditCard),
		slog.String("last4", c.Last4()),
	)
}

// Wipe clears the sensitive fields in place.
func (c *CardInstrument) Wipe() {
	c.Number = ""
	c.CVV = ""
}

// PixInstrument is the confirmation-only PIX placeholder.
type PixInstrument struct{}

func (PixInstrument) Method() string { return MethodPix }
func (PixInstrument) isInstrument()  {}

// BoletoInstrument is the confirmation-only boleto placeholder.
type BoletoInstrument struct{}

func (BoletoInstrument) Method() string { return MethodBoleto }
func (BoletoInstrument) isInstrument()  {}

// WalletInstrument names the digital wallet the customer confirms with.
type WalletInstrument struct {
	Provider string
}

func (WalletInstrument) Method() string { return MethodWallet }
func (WalletInstrument) isInstrument()  {}

// PlaceholderFor returns the confirmation-only instrument for methods that need
// no customer data, or nil when the method requires one.
func PlaceholderFor(methodID string) Instrument {
	switch methodID {
	case MethodPix:
		return PixInstrument{}
	case MethodBoleto:
		return BoletoInstrument{}
	case MethodWallet:
		return WalletInstrument{}
	default:
		return nil
	}
}
