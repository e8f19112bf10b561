package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/books"
	"github.com/simonvc/ledgerd/internal/server"
	"github.com/simonvc/ledgerd/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		opts, err := booksOptions(cfg)
		if err != nil {
			return err
		}
		svc := books.New(st, opts, zlog)
		svc.OnPosting(auditHook(zlog))

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		zlog.Info("starting ledgerd",
			zap.String("db", cfg.Database.Path),
			zap.String("config", cfg.File),
			zap.Bool("auto_post", opts.AutoPost),
		)
		srv := server.New(svc, server.Options{
			Addr:         addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, zlog)
		return srv.ListenAndServe(cmd.Context())
	},
}

// auditHook writes one log line per posting event.
func auditHook(l *zap.Logger) books.PostingHook {
	l = l.Named("audit")
	return func(_ context.Context, ev books.PostingEvent) error {
		fields := []zap.Field{
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("company_id", ev.CompanyID),
			zap.String("entry_id", ev.Entry.ID),
			zap.String("number", ev.Entry.Number),
			zap.String("total", ev.Entry.TotalDebit.StringFixed(2)),
			zap.String("user", ev.User),
		}
		if ev.Reversal != nil {
			fields = append(fields, zap.String("reversal_number", ev.Reversal.Number))
		}
		l.Info("ledger change", fields...)
		return nil
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8888", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
