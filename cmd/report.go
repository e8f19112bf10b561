package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/ledger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Financial reports",
}

var (
	reportFrom string
	reportTo   string
	reportAsOf string
)

var reportTrialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Trial balance for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		from, to, err := periodFlags(reportFrom, reportTo)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			tb, err := c.TrialBalance(ctx, companyID, from, to)
			if err != nil {
				return err
			}
			printTrialBalance(tb)
			return nil
		})
	},
}

var reportIncomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Income statement for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		from, to, err := periodFlags(reportFrom, reportTo)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			is, err := c.IncomeStatement(ctx, companyID, from, to)
			if err != nil {
				return err
			}
			printIncomeStatement(is)
			return nil
		})
	},
}

var reportBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Balance sheet as of a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		asOf := today()
		if reportAsOf != "" {
			if asOf, err = parseDay(reportAsOf, "as-of"); err != nil {
				return err
			}
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			bs, err := c.BalanceSheet(ctx, companyID, asOf)
			if err != nil {
				return err
			}
			printBalanceSheet(bs)
			return nil
		})
	},
}

var reportLedgerCmd = &cobra.Command{
	Use:   "ledger [code|id]",
	Short: "General ledger of one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		from, to, err := periodFlags(reportFrom, reportTo)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := resolveAccount(ctx, c, companyID, args[0])
			if err != nil {
				return err
			}
			gl, err := c.GeneralLedger(ctx, companyID, id, from, to)
			if err != nil {
				return err
			}
			printGeneralLedger(gl)
			return nil
		})
	},
}

var reportCashFlowCmd = &cobra.Command{
	Use:   "cashflow",
	Short: "Cash flow statement for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}
		from, to, err := periodFlags(reportFrom, reportTo)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			cf, err := c.CashFlow(ctx, companyID, from, to)
			if err != nil {
				return err
			}
			printCashFlow(cf)
			return nil
		})
	},
}

func printHeading(title, sub string, w int) {
	fmt.Println()
	fmt.Println(lipgloss.PlaceHorizontal(w, lipgloss.Center, titleStyle.Render(title)))
	fmt.Println(lipgloss.PlaceHorizontal(w, lipgloss.Center, subtitleStyle.Render(sub)))
	fmt.Println()
}

func period(from, to time.Time) string {
	return from.Format(dateLayout) + " to " + to.Format(dateLayout)
}

func printTrialBalance(tb *ledger.TrialBalance) {
	w := 110
	printHeading("TRIAL BALANCE", period(tb.From, tb.To), w)

	row := "  %-16s %-26s %12s %12s %12s %12s %12s %12s\n"
	fmt.Printf(row, "CODE", "NAME", "OPEN DR", "OPEN CR", "PERIOD DR", "PERIOD CR", "CLOSE DR", "CLOSE CR")
	fmt.Printf(row, "----", "----", "-------", "-------", "---------", "---------", "--------", "--------")
	for _, r := range tb.Rows {
		name := r.Name
		if len(name) > 24 {
			name = name[:24] + ".."
		}
		fmt.Printf(row, r.Code, name,
			blankZero(r.OpeningDebit), blankZero(r.OpeningCredit),
			blankZero(r.PeriodDebit), blankZero(r.PeriodCredit),
			blankZero(r.ClosingDebit), blankZero(r.ClosingCredit))
	}
	fmt.Printf("  %s\n", dimStyle.Render(strings.Repeat("─", w-4)))
	t := tb.Totals
	fmt.Printf(row, "TOTALS", "",
		ledger.FormatAmount(t.OpeningDebit), ledger.FormatAmount(t.OpeningCredit),
		ledger.FormatAmount(t.PeriodDebit), ledger.FormatAmount(t.PeriodCredit),
		ledger.FormatAmount(t.ClosingDebit), ledger.FormatAmount(t.ClosingCredit))

	fmt.Println("\n  " + balancedBadge(tb.Balanced))
	printWarnings(tb.Warnings)
}

func printIncomeStatement(is *ledger.IncomeStatement) {
	w := 60
	printHeading("INCOME STATEMENT", period(is.From, is.To), w)

	printStatementSection("INCOME", is.Income, w)
	printTotal("Total Income", is.TotalIncome, w)
	fmt.Println()

	printStatementSection("EXPENSES", is.Expenses, w)
	printTotal("Total Expenses", is.TotalExpenses, w)
	fmt.Println()

	label := "NET INCOME"
	if is.NetIncome.IsNegative() {
		label = "NET LOSS"
	}
	fmt.Println(boxStyle.Render(fmt.Sprintf("%-*s%15s", w-24, label, formatSigned(is.NetIncome))))
}

func printBalanceSheet(bs *ledger.BalanceSheet) {
	w := 60
	printHeading("BALANCE SHEET", "as of "+bs.AsOf.Format(dateLayout), w)

	printStatementSection("ASSETS", bs.Assets, w)
	printTotal("Total Assets", bs.TotalAssets, w)
	fmt.Println()

	printStatementSection("LIABILITIES", bs.Liabilities, w)
	printTotal("Total Liabilities", bs.TotalLiabilities, w)
	fmt.Println()

	printStatementSection("EQUITY", bs.Equity, w)
	fmt.Printf("  %-*s%15s\n", w-17, "Current period earnings", formatSigned(bs.CurrentEarnings))
	printTotal("Total Equity", bs.TotalEquity.Add(bs.CurrentEarnings), w)
	fmt.Println()

	fmt.Printf("%*s%s\n", w-15, "", "═════════════")
	fmt.Printf("%-*s%15s\n", w-15, "Total L + E", formatSigned(bs.TotalLiabilitiesAndEquity))
	if !bs.Difference.IsZero() {
		fmt.Printf("%-*s%15s\n", w-15, "Difference", formatSigned(bs.Difference))
	}

	fmt.Println("\n  " + balancedBadge(bs.Balanced))
	printWarnings(bs.Warnings)
}

func printGeneralLedger(gl *ledger.GeneralLedger) {
	w := 100
	printHeading("GENERAL LEDGER", gl.Code+" "+gl.Name+", "+period(gl.From, gl.To), w)

	row := "  %-10s %-8s %-16s %-24s %12s %12s %14s\n"
	fmt.Printf(row, "DATE", "NUMBER", "REFERENCE", "DESCRIPTION", "DEBIT", "CREDIT", "BALANCE")
	fmt.Printf(row, "----", "------", "---------", "-----------", "-----", "------", "-------")
	fmt.Printf(row, "", "", "", "Opening balance", "", "", formatSigned(gl.Opening))
	for _, r := range gl.Rows {
		desc := r.Description
		if len(desc) > 22 {
			desc = desc[:22] + ".."
		}
		fmt.Printf(row, r.Date.Format(dateLayout), r.Number, r.Reference, desc,
			blankZero(r.Debit), blankZero(r.Credit), formatSigned(r.Balance))
	}
	fmt.Printf("  %s\n", dimStyle.Render(strings.Repeat("─", w-4)))
	fmt.Printf(row, "", "", "", "Closing balance",
		ledger.FormatAmount(gl.TotalDebit), ledger.FormatAmount(gl.TotalCredit), formatSigned(gl.Closing))
}

func printCashFlow(cf *ledger.CashFlow) {
	w := 70
	printHeading("CASH FLOW STATEMENT", period(cf.From, cf.To), w)
	if cf.BestEffort {
		fmt.Println("  " + warnStyle.Render("Estimated: activities classified by "+cf.Classifier+" rules"))
		fmt.Println()
	}

	fmt.Printf("  %-*s%15s\n", w-19, "Opening cash", formatSigned(cf.Opening))
	fmt.Println()
	for _, s := range cf.Sections {
		fmt.Printf("  %s\n", sectionStyle.Render(strings.ToUpper(string(s.Activity))+" ACTIVITIES"))
		for _, it := range s.Items {
			desc := it.Description
			if len(desc) > 34 {
				desc = desc[:34] + ".."
			}
			amount := it.Inflow.Sub(it.Outflow)
			fmt.Printf("    %-10s %-*s%15s\n", it.Date.Format(dateLayout), w-32, desc, formatSigned(amount))
		}
		printTotal("Net "+string(s.Activity), s.Net, w)
		fmt.Println()
	}

	fmt.Printf("%*s%s\n", w-15, "", "═════════════")
	fmt.Printf("%-*s%15s\n", w-15, "Net change in cash", formatSigned(cf.NetChange))
	fmt.Printf("%-*s%15s\n", w-15, "Closing cash", formatSigned(cf.Closing))
	printWarnings(cf.Warnings)
}

func printStatementSection(title string, lines []ledger.StatementLine, w int) {
	fmt.Printf("  %s\n", sectionStyle.Render(title))
	fmt.Printf("  %s\n", dimStyle.Render(strings.Repeat("─", w-4)))
	for _, l := range lines {
		name := strings.Repeat(" ", (l.Level-1)*2) + l.Name
		if len(name) > w-34 {
			name = name[:w-34] + ".."
		}
		fmt.Printf("  %-14s %-*s%15s\n", l.Code, w-34, name, formatSigned(l.Amount))
	}
}

func printTotal(label string, amount decimal.Decimal, w int) {
	fmt.Printf("%*s%s\n", w-15, "", "─────────────")
	fmt.Printf("%-*s%15s\n", w-15, label, formatSigned(amount))
}

func printWarnings(ws []ledger.ReconciliationWarning) {
	for _, wn := range ws {
		fmt.Println("  " + warnStyle.Render(fmt.Sprintf("! %s: %s (difference %s)",
			wn.Section, wn.Message, ledger.FormatAmount(wn.Difference))))
	}
}

func formatSigned(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "(" + ledger.FormatAmount(amount.Neg()) + ")"
	}
	return ledger.FormatAmount(amount)
}

func blankZero(amount decimal.Decimal) string {
	if ledger.Round(amount).IsZero() {
		return ""
	}
	return ledger.FormatAmount(amount)
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportFrom, "from", "", "Period start (default first day of --to's month)")
	reportCmd.PersistentFlags().StringVar(&reportTo, "to", "", "Period end, inclusive (default today)")
	reportBalanceCmd.Flags().StringVar(&reportAsOf, "as-of", "", "Balance sheet date (default today)")

	reportCmd.AddCommand(reportTrialCmd)
	reportCmd.AddCommand(reportIncomeCmd)
	reportCmd.AddCommand(reportBalanceCmd)
	reportCmd.AddCommand(reportLedgerCmd)
	reportCmd.AddCommand(reportCashFlowCmd)
	rootCmd.AddCommand(reportCmd)
}
