package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/ledger"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	Aliases: []string{"je"},
	Short:   "Manage journal entries",
}

// entry create
var (
	entryDate        string
	entryDescription string
	entryReference   string
	entryLines       []string // format: "account:D|C:amount[:description]"
	entryPost        bool
	entryUser        string
)

var entryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual journal entry",
	Long: "Create a journal entry as a draft, or posted with --post.\n" +
		`Each --line is formatted as "account:D|C:amount[:description]" where account is a code or id ` +
		`(e.g. "1.1.01.02:D:500" and "3.1.01:C:500").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		date := today()
		if entryDate != "" {
			if date, err = parseDay(entryDate, "date"); err != nil {
				return err
			}
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			in := client.EntryInput{
				Date:        date.Format(dateLayout),
				Reference:   entryReference,
				Description: entryDescription,
				User:        entryUser,
				Post:        entryPost,
			}
			for _, raw := range entryLines {
				l, err := parseLine(ctx, c, companyID, raw)
				if err != nil {
					return err
				}
				in.Lines = append(in.Lines, l)
			}

			created, err := c.CreateEntry(ctx, companyID, in)
			if err != nil {
				return err
			}
			printEntry(created)
			return nil
		})
	},
}

func parseLine(ctx context.Context, c *client.Client, companyID, raw string) (ledger.Line, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return ledger.Line{}, fmt.Errorf("invalid line %q, expected account:D|C:amount[:description]", raw)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(parts[2], ",", ""))
	if err != nil {
		return ledger.Line{}, fmt.Errorf("invalid amount %q in line %q: %w", parts[2], raw, err)
	}
	id, err := resolveAccount(ctx, c, companyID, parts[0])
	if err != nil {
		return ledger.Line{}, err
	}

	l := ledger.Line{AccountID: id}
	if len(parts) == 4 {
		l.Description = parts[3]
	}
	switch strings.ToUpper(parts[1]) {
	case "D", "DR", "DEBIT":
		l.Debit = amount
	case "C", "CR", "CREDIT":
		l.Credit = amount
	default:
		return ledger.Line{}, fmt.Errorf("invalid side %q in line %q, expected D or C", parts[1], raw)
	}
	return l, nil
}

// entry list
var (
	entryListState string
	entryListLimit int
)

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			entries, err := c.ListEntries(ctx, companyID, ledger.EntryState(entryListState), entryListLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No entries found.")
				return nil
			}

			fmt.Printf("%-8s %-10s %-10s %-18s %14s  %s\n", "NUMBER", "DATE", "STATE", "REFERENCE", "TOTAL", "DESCRIPTION")
			fmt.Printf("%-8s %-10s %-10s %-18s %14s  %s\n", "------", "----", "-----", "---------", "-----", "-----------")
			for _, e := range entries {
				desc := e.Description
				if len(desc) > 40 {
					desc = desc[:38] + ".."
				}
				fmt.Printf("%-8s %-10s %-10s %-18s %14s  %s\n",
					e.Number, e.Date.Format(dateLayout), e.State, e.Reference, ledger.FormatAmount(e.TotalDebit), desc)
			}
			return nil
		})
	},
}

var entryGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a journal entry with its lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			e, err := c.GetEntry(ctx, companyID, args[0])
			if err != nil {
				return err
			}
			printEntry(e)
			return nil
		})
	},
}

var entryPostCmd = &cobra.Command{
	Use:   "post [id]",
	Short: "Post a draft entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			e, err := c.PostEntry(ctx, companyID, args[0], entryUser)
			if err != nil {
				return err
			}
			fmt.Printf("Entry %s posted.\n", e.Number)
			return nil
		})
	},
}

var entryCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a posted entry with a reversing entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			rev, err := c.CancelEntry(ctx, companyID, args[0], entryUser)
			if err != nil {
				return err
			}
			fmt.Printf("Entry cancelled; reversal %s (%s) dated %s.\n", rev.Number, rev.Reference, rev.Date.Format(dateLayout))
			return nil
		})
	},
}

func printEntry(e *ledger.Entry) {
	fmt.Printf("ID:          %s\n", e.ID)
	fmt.Printf("Number:      %s\n", e.Number)
	fmt.Printf("Date:        %s\n", e.Date.Format(dateLayout))
	fmt.Printf("State:       %s\n", e.State)
	if e.Reference != "" {
		fmt.Printf("Reference:   %s\n", e.Reference)
	}
	fmt.Printf("Description: %s\n", e.Description)
	if e.ReversalOf != "" {
		fmt.Printf("Reverses:    %s\n", e.ReversalOf)
	}
	if e.ReversedBy != "" {
		fmt.Printf("Reversed by: %s\n", e.ReversedBy)
	}
	fmt.Printf("Lines:\n")
	fmt.Printf("  %-16s %14s %14s  %s\n", "ACCOUNT", "DEBIT", "CREDIT", "DESCRIPTION")
	for _, l := range e.Lines {
		debit, credit := "", ""
		if l.Debit.IsPositive() {
			debit = ledger.FormatAmount(l.Debit)
		}
		if l.Credit.IsPositive() {
			credit = ledger.FormatAmount(l.Credit)
		}
		acct := l.AccountCode
		if acct == "" {
			acct = l.AccountID
		}
		fmt.Printf("  %-16s %14s %14s  %s\n", acct, debit, credit, l.Description)
	}
	fmt.Printf("  %-16s %14s %14s\n", "TOTALS", ledger.FormatAmount(e.TotalDebit), ledger.FormatAmount(e.TotalCredit))
}

func init() {
	entryCreateCmd.Flags().StringVar(&entryDate, "date", "", "Entry date (default today)")
	entryCreateCmd.Flags().StringVar(&entryDescription, "description", "", "Entry description")
	entryCreateCmd.Flags().StringVar(&entryReference, "reference", "", "Unique reference, e.g. a source document")
	entryCreateCmd.Flags().StringArrayVar(&entryLines, "line", nil, "Line as account:D|C:amount[:description] (repeatable)")
	entryCreateCmd.Flags().BoolVar(&entryPost, "post", false, "Post the entry immediately")
	entryCreateCmd.MarkFlagRequired("description")
	entryCreateCmd.MarkFlagRequired("line")

	entryListCmd.Flags().StringVar(&entryListState, "state", "", "Filter by state (draft, posted, cancelled)")
	entryListCmd.Flags().IntVar(&entryListLimit, "limit", 50, "Maximum entries to show")

	entryCmd.PersistentFlags().StringVar(&entryUser, "user", "", "User recorded on the change")

	entryCmd.AddCommand(entryCreateCmd)
	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryGetCmd)
	entryCmd.AddCommand(entryPostCmd)
	entryCmd.AddCommand(entryCancelCmd)

	rootCmd.AddCommand(entryCmd)
}
