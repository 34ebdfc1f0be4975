package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Source fetches the method records a catalog is built from.
type Source interface {
	Fetch(ctx context.Context) ([]model.PaymentMethod, error)
}

// StaticSource serves a fixed list of methods.
type StaticSource []model.PaymentMethod

func (s StaticSource) Fetch(context.Context) ([]model.PaymentMethod, error) {
	out := make([]model.PaymentMethod, len(s))
	copy(out, s)
	return out, nil
}

// Defaults returns the reference method list: cards in up to 12 installments,
// PIX with a 5% discount, boleto with a fixed fee and a wallet option.
func Defaults() StaticSource {
	return StaticSource{
		{
			ID:                   model.MethodCreditCard,
			Label:                "Credit card",
			SupportsInstallments: true,
			MaxInstallments:      12,
		},
		{
			ID:              model.MethodPix,
			Label:           "PIX",
			DiscountRate:    decimal.RequireFromString("0.05"),
			MaxInstallments: 1,
		},
		{
			ID:                 model.MethodBoleto,
			Label:              "Boleto",
			ProcessingFeeFixed: decimal.RequireFromString("2.99"),
			MaxInstallments:    1,
		},
		{
			ID:              model.MethodWallet,
			Label:           "Digital wallet",
			MaxInstallments: 1,
		},
	}
}

// FileSource reads methods from a YAML document:
//
//	methods:
//	  - id: pix
//	    label: PIX
//	    discount_rate: "0.05"
type FileSource struct {
	Path string
}

type fileDoc struct {
	Methods []fileMethod `yaml:"methods"`
}

type fileMethod struct {
	ID                   string `yaml:"id"`
	Label                string `yaml:"label"`
	ProcessingFeeFixed   string `yaml:"processing_fee_fixed"`
	DiscountRate         string `yaml:"discount_rate"`
	SupportsInstallments bool   `yaml:"supports_installments"`
	MaxInstallments      int    `yaml:"max_installments"`
}

func (s FileSource) Fetch(ctx context.Context) ([]model.PaymentMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return parseYAML(raw)
}

func parseYAML(raw []byte) ([]model.PaymentMethod, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	methods := make([]model.PaymentMethod, 0, len(doc.Methods))
	for _, fm := range doc.Methods {
		fee, err := parseAmount(fm.ProcessingFeeFixed)
		if err != nil {
			return nil, fmt.Errorf("method %s: processing_fee_fixed: %w", fm.ID, err)
		}
		rate, err := parseAmount(fm.DiscountRate)
		if err != nil {
			return nil, fmt.Errorf("method %s: discount_rate: %w", fm.ID, err)
		}
		maxInst := fm.MaxInstallments
		if maxInst == 0 {
			maxInst = 1
		}
		methods = append(methods, model.PaymentMethod{
			ID:                   fm.ID,
			Label:                fm.Label,
			ProcessingFeeFixed:   fee,
			DiscountRate:         rate,
			SupportsInstallments: fm.SupportsInstallments,
			MaxInstallments:      maxInst,
		})
	}
	return methods, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
