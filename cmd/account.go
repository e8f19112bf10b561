package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/ledger"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the chart of accounts",
}

// account create
var (
	acctCreateCode        string
	acctCreateName        string
	acctCreateType        string
	acctCreateParent      string
	acctCreateAuxKind     string
	acctCreateRequiresAux bool
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			in := client.AccountInput{
				Code:              acctCreateCode,
				Name:              acctCreateName,
				Type:              ledger.AccountType(acctCreateType),
				RequiresAuxiliary: acctCreateRequiresAux,
				AuxiliaryKind:     ledger.AuxiliaryKind(acctCreateAuxKind),
			}
			if ledger.ValidCode(acctCreateParent) {
				in.ParentCode = acctCreateParent
			} else {
				in.ParentID = acctCreateParent
			}

			created, err := c.CreateAccount(ctx, companyID, in)
			if err != nil {
				return err
			}
			fmt.Printf("Account created: %s %s (%s) level %d\n", created.Code, created.Name, created.Type, created.Level)
			fmt.Printf("ID: %s\n", created.ID)
			return nil
		})
	},
}

// account list
var (
	acctListType string
	acctListLeaf bool
)

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts in code order",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			accounts, err := c.ListAccounts(ctx, companyID, ledger.AccountType(acctListType), acctListLeaf)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts found.")
				return nil
			}

			fmt.Printf("%-24s %-36s %-10s %-4s %s\n", "CODE", "NAME", "TYPE", "MOV", "AUX")
			fmt.Printf("%-24s %-36s %-10s %-4s %s\n", "----", "----", "----", "---", "---")
			for _, a := range accounts {
				code := strings.Repeat("  ", a.Level-1) + a.Code
				name := a.Name
				if len(name) > 34 {
					name = name[:34] + ".."
				}
				mov := ""
				if a.AcceptsMovement {
					mov = "yes"
				}
				aux := string(a.AuxiliaryKind)
				if a.RequiresAuxiliary {
					aux += "*"
				}
				fmt.Printf("%-24s %-36s %-10s %-4s %s\n", code, name, a.Type, mov, aux)
			}
			return nil
		})
	},
}

var accountGetCmd = &cobra.Command{
	Use:   "get [code|id]",
	Short: "Show account details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := resolveAccount(ctx, c, companyID, args[0])
			if err != nil {
				return err
			}
			acct, err := c.GetAccount(ctx, companyID, id)
			if err != nil {
				return err
			}

			fmt.Printf("ID:       %s\n", acct.ID)
			fmt.Printf("Code:     %s\n", acct.Code)
			fmt.Printf("Name:     %s\n", acct.Name)
			fmt.Printf("Type:     %s (%s normal)\n", ledger.TypeLabel(acct.Type), ledger.NormalBalance(acct.Type))
			fmt.Printf("Level:    %d\n", acct.Level)
			fmt.Printf("Movement: %v\n", acct.AcceptsMovement)
			if acct.AuxiliaryKind != ledger.AuxNone {
				fmt.Printf("Aux:      %s (required: %v)\n", acct.AuxiliaryKind, acct.RequiresAuxiliary)
			}
			fmt.Printf("Created:  %s\n", acct.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		})
	},
}

var acctMoveParent string

var accountMoveCmd = &cobra.Command{
	Use:   "move [code|id]",
	Short: "Move an account under a new parent (no --parent makes it a root)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := resolveAccount(ctx, c, companyID, args[0])
			if err != nil {
				return err
			}
			parentID := ""
			if acctMoveParent != "" {
				if parentID, err = resolveAccount(ctx, c, companyID, acctMoveParent); err != nil {
					return err
				}
			}
			changed, err := c.MoveAccount(ctx, companyID, id, parentID)
			if err != nil {
				return err
			}
			fmt.Printf("Account moved; %d accounts updated.\n", len(changed))
			return nil
		})
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [code|id]",
	Short: "Delete an account with no children and no lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := resolveAccount(ctx, c, companyID, args[0])
			if err != nil {
				return err
			}
			if err := c.DeleteAccount(ctx, companyID, id); err != nil {
				return err
			}
			fmt.Println("Account deleted.")
			return nil
		})
	},
}

var accountSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default chart of accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			created, err := c.SeedChart(ctx, companyID)
			if err != nil {
				return err
			}
			fmt.Printf("%d accounts created.\n", len(created))
			return nil
		})
	},
}

// account balance
var (
	acctBalanceFrom string
	acctBalanceTo   string
)

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [code|id]",
	Short: "Show an account balance, cumulative unless --from is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		to := today()
		if acctBalanceTo != "" {
			if to, err = parseDay(acctBalanceTo, "to"); err != nil {
				return err
			}
		}
		var from *time.Time
		if acctBalanceFrom != "" {
			t, err := parseDay(acctBalanceFrom, "from")
			if err != nil {
				return err
			}
			from = &t
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := resolveAccount(ctx, c, companyID, args[0])
			if err != nil {
				return err
			}
			bal, err := c.AccountBalance(ctx, companyID, id, from, to)
			if err != nil {
				return err
			}
			window := "up to " + bal.To.Format(dateLayout)
			if bal.From != nil {
				window = bal.From.Format(dateLayout) + " to " + bal.To.Format(dateLayout)
			}
			fmt.Printf("Account: %s (%s)\n", args[0], window)
			fmt.Printf("Debit:   %s\n", ledger.FormatAmount(bal.Debit))
			fmt.Printf("Credit:  %s\n", ledger.FormatAmount(bal.Credit))
			fmt.Printf("Balance: %s\n", ledger.FormatAmount(bal.Balance))
			return nil
		})
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&acctCreateCode, "code", "", "Dotted account code, e.g. 1.1.01.02.01")
	accountCreateCmd.Flags().StringVar(&acctCreateName, "name", "", "Account name")
	accountCreateCmd.Flags().StringVar(&acctCreateType, "type", "", "Account type (asset, liability, equity, income, expense)")
	accountCreateCmd.Flags().StringVar(&acctCreateParent, "parent", "", "Parent account code or id")
	accountCreateCmd.Flags().StringVar(&acctCreateAuxKind, "aux-kind", "", "Auxiliary kind (client, supplier, employee, bank, cash, product, other)")
	accountCreateCmd.Flags().BoolVar(&acctCreateRequiresAux, "requires-aux", false, "Lines must carry an auxiliary reference")
	accountCreateCmd.MarkFlagRequired("code")
	accountCreateCmd.MarkFlagRequired("name")
	accountCreateCmd.MarkFlagRequired("type")

	accountListCmd.Flags().StringVar(&acctListType, "type", "", "Filter by type")
	accountListCmd.Flags().BoolVar(&acctListLeaf, "leaf", false, "Only accounts that accept movements")

	accountMoveCmd.Flags().StringVar(&acctMoveParent, "parent", "", "New parent code or id")

	accountBalanceCmd.Flags().StringVar(&acctBalanceFrom, "from", "", "Start date (inclusive)")
	accountBalanceCmd.Flags().StringVar(&acctBalanceTo, "to", "", "End date (inclusive, default today)")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountGetCmd)
	accountCmd.AddCommand(accountMoveCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountCmd.AddCommand(accountSeedCmd)
	accountCmd.AddCommand(accountBalanceCmd)

	rootCmd.AddCommand(accountCmd)
}
