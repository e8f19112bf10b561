package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage companies",
}

var (
	companyName   string
	companyTaxID  string
	companyNoSeed bool
)

var companyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a company and seed its chart of accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			co, err := c.CreateCompany(ctx, companyName, companyTaxID, !companyNoSeed)
			if err != nil {
				return err
			}
			fmt.Printf("Company created: %s (%s)\n", co.ID, co.Name)
			if !companyNoSeed {
				fmt.Println("Default chart of accounts seeded.")
			}
			return nil
		})
	},
}

var companyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			companies, err := c.ListCompanies(ctx)
			if err != nil {
				return err
			}
			if len(companies) == 0 {
				fmt.Println("No companies found.")
				return nil
			}
			fmt.Printf("%-38s %-30s %s\n", "ID", "NAME", "TAX ID")
			fmt.Printf("%-38s %-30s %s\n", "--", "----", "------")
			for _, co := range companies {
				fmt.Printf("%-38s %-30s %s\n", co.ID, co.Name, co.TaxID)
			}
			return nil
		})
	},
}

func init() {
	companyCreateCmd.Flags().StringVar(&companyName, "name", "", "Company name")
	companyCreateCmd.Flags().StringVar(&companyTaxID, "tax-id", "", "Tax identification number")
	companyCreateCmd.Flags().BoolVar(&companyNoSeed, "no-seed", false, "Do not seed the default chart of accounts")
	companyCreateCmd.MarkFlagRequired("name")

	companyCmd.AddCommand(companyCreateCmd)
	companyCmd.AddCommand(companyListCmd)
	rootCmd.AddCommand(companyCmd)
}
