package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/books"
	"github.com/simonvc/ledgerd/internal/logger"
)

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	books  *books.Service
	router chi.Router
	opts   Options
	log    *zap.Logger
}

func New(svc *books.Service, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)

	s := &Server{books: svc, router: r, opts: opts, log: log}

	r.Get("/healthz", s.health)

	r.Route("/api/v1/companies", func(r chi.Router) {
		r.Post("/", s.createCompany)
		r.Get("/", s.listCompanies)

		r.Route("/{companyID}", func(r chi.Router) {
			r.Get("/", s.getCompany)

			// Accounts
			r.Post("/accounts", s.createAccount)
			r.Get("/accounts", s.listAccounts)
			r.Post("/accounts/seed", s.seedChart)
			r.Get("/accounts/{id}", s.getAccount)
			r.Patch("/accounts/{id}/parent", s.moveAccount)
			r.Delete("/accounts/{id}", s.deleteAccount)
			r.Get("/accounts/{id}/balance", s.accountBalance)
			r.Get("/accounts/{id}/ledger", s.generalLedger)

			// Entries
			r.Post("/entries", s.createEntry)
			r.Get("/entries", s.listEntries)
			r.Get("/entries/{id}", s.getEntry)
			r.Delete("/entries/{id}", s.deleteDraft)
			r.Post("/entries/{id}/lines", s.addLine)
			r.Put("/entries/{id}/lines/{lineID}", s.updateLine)
			r.Delete("/entries/{id}/lines/{lineID}", s.removeLine)
			r.Post("/entries/{id}/post", s.postEntry)
			r.Post("/entries/{id}/cancel", s.cancelEntry)

			// Source documents
			r.Post("/documents/sales", s.generateFromSale)

			// Account mappings
			r.Get("/tax-mappings", s.listTaxMappings)
			r.Put("/tax-mappings/{rate}", s.setTaxMapping)
			r.Get("/account-defaults", s.listAccountDefaults)
			r.Put("/account-defaults/{purpose}", s.setAccountDefault)
			r.Get("/resolve", s.resolveAccount)

			// Reports
			r.Get("/reports/trial-balance", s.trialBalance)
			r.Get("/reports/income-statement", s.incomeStatement)
			r.Get("/reports/balance-sheet", s.balanceSheet)
			r.Get("/reports/cash-flow", s.cashFlow)
		})
	})

	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("ledgerd listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.books.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
