package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/ledger"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Configure the accounts used by generated entries",
}

var mappingRetention string

var mappingTaxCmd = &cobra.Command{
	Use:   "tax [rate] [code|id]",
	Short: "Map a tax rate to its payable account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		if _, err := decimal.NewFromString(args[0]); err != nil {
			return fmt.Errorf("invalid rate %q: %w", args[0], err)
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			acct, err := resolveAccount(ctx, c, companyID, args[1])
			if err != nil {
				return err
			}
			retention := ""
			if mappingRetention != "" {
				if retention, err = resolveAccount(ctx, c, companyID, mappingRetention); err != nil {
					return err
				}
			}
			m, err := c.SetTaxMapping(ctx, companyID, args[0], acct, retention)
			if err != nil {
				return err
			}
			fmt.Printf("Tax rate %s%% now posts to %s.\n", ledger.RateKey(m.Rate), args[1])
			if m.RetentionAccountID != "" {
				fmt.Printf("VAT withheld at this rate goes to %s.\n", mappingRetention)
			}
			return nil
		})
	},
}

var mappingDefaultCmd = &cobra.Command{
	Use:   "default [purpose] [code|id]",
	Short: "Set the default account for a purpose",
	Long: "Set the default account for a purpose. Purposes: revenue, tax_payable, " +
		"iva_retention_receivable, ir_retention_receivable, cost_of_sales, inventory.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		purpose := ledger.Purpose(args[0])
		if !ledger.ValidPurpose(purpose) {
			return fmt.Errorf("unknown purpose %q", args[0])
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			acct, err := resolveAccount(ctx, c, companyID, args[1])
			if err != nil {
				return err
			}
			if _, err := c.SetAccountDefault(ctx, companyID, purpose, acct); err != nil {
				return err
			}
			fmt.Printf("Default %s account set to %s.\n", purpose, args[1])
			return nil
		})
	},
}

var mappingResolveCmd = &cobra.Command{
	Use:   "resolve [purpose] [rate]",
	Short: "Show which account generated entries use for a purpose",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		purpose := ledger.Purpose(args[0])
		if !ledger.ValidPurpose(purpose) {
			return fmt.Errorf("unknown purpose %q", args[0])
		}
		rate := ""
		if len(args) == 2 {
			rate = args[1]
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			res, err := c.ResolveAccount(ctx, companyID, purpose, rate)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s %s (%s)\n", purpose, res.Account.Code, res.Account.Name, res.Tier)
			return nil
		})
	},
}

func init() {
	mappingTaxCmd.Flags().StringVar(&mappingRetention, "retention", "", "Receivable account for VAT withheld at this rate")

	mappingCmd.AddCommand(mappingTaxCmd)
	mappingCmd.AddCommand(mappingDefaultCmd)
	mappingCmd.AddCommand(mappingResolveCmd)
	rootCmd.AddCommand(mappingCmd)
}
