package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simonvc/ledgerd/internal/books"
	"github.com/simonvc/ledgerd/internal/client"
	"github.com/simonvc/ledgerd/internal/config"
	"github.com/simonvc/ledgerd/internal/generator"
	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/logger"
	"github.com/simonvc/ledgerd/internal/report"
	"github.com/simonvc/ledgerd/internal/resolver"
	"github.com/simonvc/ledgerd/internal/server"
	"github.com/simonvc/ledgerd/internal/store"
)

const dateLayout = "2006-01-02"

var (
	flagConfig   string
	flagServer   string
	flagDB       string
	flagLogLevel string
	flagCompany  string

	cfg  *config.Config
	zlog *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "Multi-company double-entry accounting ledger",
	Long: "A double-entry accounting ledger backed by SQLite. It keeps a hierarchical chart of accounts per company, " +
		"turns sales invoices into balanced journal entries and produces trial balances and financial statements.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(flagConfig); err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.Database.Path = flagDB
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = flagLogLevel
		}
		zlog, err = logger.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zlog != nil {
			zlog.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./ledgerd.yaml or $HOME/.ledgerd/ledgerd.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server URL, e.g. http://localhost:8888 (default: embedded server on --db)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "ledgerd.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagCompany, "company", os.Getenv("LEDGERD_COMPANY"), "Company ID (or LEDGERD_COMPANY)")
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func booksOptions(c *config.Config) (books.Options, error) {
	opts := books.DefaultOptions()
	opts.Generator = generator.Options{
		ReferencePrefix: c.Generator.ReferencePrefix,
		DefaultTaxRate:  c.Generator.DefaultTaxRate,
	}
	opts.AutoPost = c.Generator.AutoPost
	opts.CashCodes = c.CashFlow.CashCodes

	opts.Resolver = resolver.Defaults{
		TaxRateCodes:    c.Resolver.TaxRateCodes,
		PurposeCodes:    make(map[ledger.Purpose]string, len(c.Resolver.PurposeCodes)),
		PurposePrefixes: make(map[ledger.Purpose][]string, len(c.Resolver.PurposePrefixes)),
	}
	for k, v := range c.Resolver.PurposeCodes {
		if !ledger.ValidPurpose(ledger.Purpose(k)) {
			return opts, fmt.Errorf("resolver.purpose_codes: unknown purpose %q", k)
		}
		opts.Resolver.PurposeCodes[ledger.Purpose(k)] = v
	}
	for k, v := range c.Resolver.PurposePrefixes {
		if !ledger.ValidPurpose(ledger.Purpose(k)) {
			return opts, fmt.Errorf("resolver.purpose_prefixes: unknown purpose %q", k)
		}
		opts.Resolver.PurposePrefixes[ledger.Purpose(k)] = v
	}

	kw := report.DefaultKeywordClassifier()
	if len(c.CashFlow.InvestingKeywords) > 0 {
		kw.Investing = c.CashFlow.InvestingKeywords
	}
	if len(c.CashFlow.FinancingKeywords) > 0 {
		kw.Financing = c.CashFlow.FinancingKeywords
	}
	opts.Classifier = kw
	return opts, nil
}

// withClient runs fn against --server when given, otherwise against an
// embedded server bound to a loopback port and backed by the local
// database.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("server") {
		return fn(ctx, client.New(flagServer))
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	opts, err := booksOptions(cfg)
	if err != nil {
		return err
	}
	l := zlog
	if !cmd.Flags().Changed("log-level") {
		l = zlog.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	srv := server.New(books.New(st, opts, l), server.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, l)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start embedded server: %w", err)
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(srvCtx, ln) }()

	ferr := fn(ctx, client.New("http://"+ln.Addr().String()))
	cancel()
	if err := <-done; err != nil && ferr == nil {
		ferr = fmt.Errorf("embedded server: %w", err)
	}
	return ferr
}

func requireCompany() (string, error) {
	if flagCompany == "" {
		return "", fmt.Errorf("--company is required (or set LEDGERD_COMPANY)")
	}
	return flagCompany, nil
}

// resolveAccount accepts an account code or id.
func resolveAccount(ctx context.Context, c *client.Client, companyID, ref string) (string, error) {
	if !ledger.ValidCode(ref) {
		return ref, nil
	}
	accounts, err := c.ListAccounts(ctx, companyID, "", false)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.Code == ref {
			return a.ID, nil
		}
	}
	return "", fmt.Errorf("%w: code %s", ledger.ErrAccountNotFound, ref)
}

func today() time.Time {
	n := time.Now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDay(s, flag string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must look like 2006-01-02: %w", flag, err)
	}
	return t, nil
}

// periodFlags returns --from and --to, defaulting to the current month to
// date.
func periodFlags(from, to string) (time.Time, time.Time, error) {
	end := today()
	if to != "" {
		t, err := parseDay(to, "to")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	if from != "" {
		t, err := parseDay(from, "from")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}
