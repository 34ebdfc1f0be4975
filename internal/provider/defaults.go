package provider

import (
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Card numbers that force an outcome on the simulated card adapter.
const (
	TestCardDeclined          = "4000000000000002"
	TestCardInsufficientFunds = "4000000000009995"
	TestCardFraud             = "4100000000000019"
	TestCardInvalid           = "4000000000000127"
)

// NewCardAdapter simulates a card acquirer: 85% approval, 8% errors, 5% declines, 2% fraud blocks.
func NewCardAdapter() *MockAdapter {
	return NewMockAdapter(MockConfig{
		AdapterName: "CardMax",
		DefaultOutcomes: OutcomeDistribution{
			ApprovalRate: 0.85,
			ErrorRate:    0.08,
			DeclineRate:  0.05,
			FraudRate:    0.02,
		},
		DeclineCode: model.CodeInsufficientFunds,
		CardOutcomes: map[string]model.FailureCode{
			TestCardDeclined:          model.CodeDeclined,
			TestCardInsufficientFunds: model.CodeInsufficientFunds,
			TestCardFraud:             model.CodeFraudBlocked,
			TestCardInvalid:           model.CodeInvalidInstrument,
		},
		MinLatency: 80 * time.Millisecond,
		MaxLatency: 300 * time.Millisecond,
	})
}

// NewPixAdapter simulates a PIX charge issuer: 95% approval, 5% errors.
func NewPixAdapter() *MockAdapter {
	return NewMockAdapter(MockConfig{
		AdapterName: "PixPay",
		DefaultOutcomes: OutcomeDistribution{
			ApprovalRate: 0.95,
			ErrorRate:    0.05,
		},
		MinLatency: 30 * time.Millisecond,
		MaxLatency: 150 * time.Millisecond,
	})
}

// NewBoletoAdapter simulates a boleto issuer: 98% approval, 2% errors.
func NewBoletoAdapter() *MockAdapter {
	return NewMockAdapter(MockConfig{
		AdapterName: "BoletoNet",
		DefaultOutcomes: OutcomeDistribution{
			ApprovalRate: 0.98,
			ErrorRate:    0.02,
		},
		MinLatency: 60 * time.Millisecond,
		MaxLatency: 250 * time.Millisecond,
	})
}

// NewWalletAdapter simulates a digital wallet: 90% approval, 7% errors, 3% declines.
func NewWalletAdapter() *MockAdapter {
	return NewMockAdapter(MockConfig{
		AdapterName: "WalletPay",
		DefaultOutcomes: OutcomeDistribution{
			ApprovalRate: 0.90,
			ErrorRate:    0.07,
			DeclineRate:  0.03,
		},
		MinLatency: 50 * time.Millisecond,
		MaxLatency: 200 * time.Millisecond,
	})
}

// DefaultRegistry binds the simulated adapters to the reference method ids.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.MethodCreditCard, NewCardAdapter())
	r.Register(model.MethodPix, NewPixAdapter())
	r.Register(model.MethodBoleto, NewBoletoAdapter())
	r.Register(model.MethodWallet, NewWalletAdapter())
	return r
}
