package handler

import (
	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/checkout"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/pricing"
)

// quoteRequest is the request body for POST /quotes
type quoteRequest struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}

func (r quoteRequest) validate() string {
	if r.Method == "" {
		return "method is required"
	}
	if r.Amount.IsNegative() {
		return "amount must not be negative"
	}
	if r.Installments < 0 {
		return "installments must not be negative"
	}
	return ""
}

type quoteResponse struct {
	Method            string            `json:"method"`
	Base              decimal.Decimal   `json:"base"`
	Fee               decimal.Decimal   `json:"fee"`
	Discount          decimal.Decimal   `json:"discount"`
	Total             decimal.Decimal   `json:"total"`
	Installments      int               `json:"installments"`
	InstallmentValues []decimal.Decimal `json:"installment_values"`
}

func newQuoteResponse(method string, t pricing.Total) quoteResponse {
	return quoteResponse{
		Method:            method,
		Base:              t.Base,
		Fee:               t.Fee,
		Discount:          pricing.Round(t.Discount),
		Total:             t.Display(),
		Installments:      t.Installments,
		InstallmentValues: t.InstallmentValues(),
	}
}

// createSessionRequest is the request body for POST /sessions
type createSessionRequest struct {
	Order model.Order `json:"order"`
}

// selectMethodRequest is the request body for POST /sessions/{id}/method
type selectMethodRequest struct {
	MethodID string `json:"method_id"`
}

type cardRequest struct {
	Number      string `json:"number"`
	HolderName  string `json:"holder_name"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

type walletRequest struct {
	Provider string `json:"provider"`
}

// intentRequest is the request body for POST /sessions/{id}/intent. Card and
// wallet are optional; PIX and boleto need neither.
type intentRequest struct {
	Card           *cardRequest          `json:"card,omitempty"`
	Wallet         *walletRequest        `json:"wallet,omitempty"`
	BillingAddress *model.BillingAddress `json:"billing_address,omitempty"`
	Installments   int                   `json:"installments"`
}

func (r intentRequest) intent() checkout.Intent {
	in := checkout.Intent{Billing: r.BillingAddress, Installments: r.Installments}
	switch {
	case r.Card != nil:
		in.Instrument = &model.CardInstrument{
			Number:      r.Card.Number,
			HolderName:  r.Card.HolderName,
			ExpiryMonth: r.Card.ExpiryMonth,
			ExpiryYear:  r.Card.ExpiryYear,
			CVV:         r.Card.CVV,
		}
	case r.Wallet != nil:
		in.Instrument = model.WalletInstrument{Provider: r.Wallet.Provider}
	}
	return in
}

type errorBody struct {
	Code      model.FailureCode `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
}

type outcomeResponse struct {
	State        checkout.State       `json:"state"`
	Result       *model.PaymentResult `json:"result,omitempty"`
	Duplicate    bool                 `json:"duplicate"`
	RetryAfterMS int64                `json:"retry_after_ms,omitempty"`
	Error        *errorBody           `json:"error,omitempty"`
}

func newOutcomeResponse(out checkout.Outcome, perr *checkout.ProviderError) outcomeResponse {
	resp := outcomeResponse{
		State:        out.State,
		Result:       out.Result,
		Duplicate:    out.Duplicate,
		RetryAfterMS: out.RetryAfter.Milliseconds(),
	}
	if perr != nil {
		resp.Error = &errorBody{Code: perr.Code, Message: perr.Message, Retryable: perr.Retryable()}
	}
	return resp
}

// degradeRequest is the request body for POST /simulate/degrade
type degradeRequest struct {
	Adapter  string `json:"adapter"`
	Degraded bool   `json:"degraded"`
}
