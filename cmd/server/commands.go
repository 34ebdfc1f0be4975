package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/pricing"
)

func methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the payment methods in catalog order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			svc, cleanup := buildService(s)
			defer cleanup()

			methods, err := svc.Methods(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range methods {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-16s fee=%s discount=%s installments=%d\n",
					m.ID, m.Label, m.ProcessingFeeFixed.StringFixed(2), m.DiscountRate.String(), m.MaxInstallments)
			}
			return nil
		},
	}
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an amount for a payment method",
		Example: `  checkout quote --method pix --amount 100
  checkout quote --method credit_card --amount 100 --installments 3`,
		RunE: runQuote,
	}
	cmd.Flags().StringP("method", "m", "", "payment method id")
	cmd.Flags().StringP("amount", "a", "", "order amount, e.g. 100.00")
	cmd.Flags().IntP("installments", "n", 1, "number of installments")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

type quoteOutput struct {
	Method            string            `json:"method"`
	Total             decimal.Decimal   `json:"total"`
	Fee               decimal.Decimal   `json:"fee"`
	Discount          decimal.Decimal   `json:"discount"`
	Installments      int               `json:"installments"`
	InstallmentValues []decimal.Decimal `json:"installment_values"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	method, _ := cmd.Flags().GetString("method")
	rawAmount, _ := cmd.Flags().GetString("amount")
	installments, _ := cmd.Flags().GetInt("installments")

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}

	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	svc, cleanup := buildService(s)
	defer cleanup()

	total, err := svc.Quote(cmd.Context(), method, amount, installments)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(quoteOutput{
		Method:            method,
		Total:             total.Display(),
		Fee:               total.Fee,
		Discount:          pricing.Round(total.Discount),
		Installments:      total.Installments,
		InstallmentValues: total.InstallmentValues(),
	})
}
