package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/ledger"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Turn source documents into journal entries",
}

var (
	docFile string
	docPost bool
	docUser string
)

var documentGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the journal entry for a sales invoice",
	Long: "Read a sales invoice as JSON (use - for stdin) and generate its journal entry. " +
		"Running it again for the same invoice returns the existing entry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := requireCompany()
		if err != nil {
			return err
		}

		var raw []byte
		if docFile == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(docFile)
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		var in client.SaleInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		if cmd.Flags().Changed("post") {
			in.AutoPost = &docPost
		}
		if docUser != "" {
			in.User = docUser
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			res, err := c.GenerateFromSale(ctx, companyID, in)
			if err != nil {
				return err
			}
			if res.Created {
				fmt.Println(successStyle.Render("Entry generated."))
			} else {
				fmt.Println(dimStyle.Render("Document already recorded; existing entry returned."))
			}
			printEntry(res.Entry)
			for _, o := range res.Omissions {
				rate := ""
				if o.Rate != nil {
					rate = " at " + ledger.RateKey(*o.Rate) + "%"
				}
				fmt.Println(warnStyle.Render(fmt.Sprintf("  omitted %s%s (%s): %s",
					o.Purpose, rate, ledger.FormatAmount(o.Amount), o.Reason)))
			}
			return nil
		})
	},
}

func init() {
	documentGenerateCmd.Flags().StringVarP(&docFile, "file", "f", "", "Invoice JSON file, or - for stdin")
	documentGenerateCmd.Flags().BoolVar(&docPost, "post", false, "Post the generated entry (default from generator.auto_post)")
	documentGenerateCmd.Flags().StringVar(&docUser, "user", "", "User recorded on the entry")
	documentGenerateCmd.MarkFlagRequired("file")

	documentCmd.AddCommand(documentGenerateCmd)
	rootCmd.AddCommand(documentCmd)
}
