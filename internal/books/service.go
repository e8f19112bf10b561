// Package books is the bookkeeping service: it ties the store, the account
// resolver, the entry generator and the report composer together behind
// one API used by the HTTP server and the CLI.
package books

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/generator"
	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/report"
	"github.com/simonvc/ledgerd/internal/resolver"
	"github.com/simonvc/ledgerd/internal/store"
)

type Options struct {
	Generator generator.Options
	// AutoPost posts generated entries in the transaction that creates them.
	AutoPost bool
	Resolver resolver.Defaults
	// CashCodes lists extra account codes treated as cash in the cash-flow
	// report, beyond accounts tagged cash or bank.
	CashCodes  []string
	Classifier report.Classifier
}

func DefaultOptions() Options {
	return Options{
		Generator:  generator.DefaultOptions(),
		Resolver:   resolver.DefaultDefaults(),
		Classifier: report.DefaultKeywordClassifier(),
	}
}

type EventKind string

const (
	EventPosted    EventKind = "posted"
	EventCancelled EventKind = "cancelled"
)

// PostingEvent is delivered to hooks after an entry is posted or cancelled.
// For cancellations Entry is the original and Reversal the new posted
// entry.
type PostingEvent struct {
	ID         string        `json:"id"`
	Kind       EventKind     `json:"kind"`
	CompanyID  string        `json:"company_id"`
	Entry      *ledger.Entry `json:"entry"`
	Reversal   *ledger.Entry `json:"reversal,omitempty"`
	User       string        `json:"user,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// PostingHook consumes posting events, e.g. to mirror bank transactions or
// move inventory. Hooks run after commit; an error is logged and never
// undoes the ledger change.
type PostingHook func(ctx context.Context, ev PostingEvent) error

type Service struct {
	store    *store.Store
	resolver *resolver.Resolver
	gen      *generator.Generator
	opts     Options
	hooks    []PostingHook
	log      *zap.Logger
	now      func() time.Time
}

func New(st *store.Store, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Classifier == nil {
		opts.Classifier = report.DefaultKeywordClassifier()
	}
	defaults := resolver.DefaultDefaults().Merge(opts.Resolver)
	r := resolver.New(st, defaults, log)
	return &Service{
		store:    st,
		resolver: r,
		gen:      generator.New(r, opts.Generator, log),
		opts:     opts,
		log:      log.Named("books"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnPosting registers a hook. Register hooks before serving requests.
func (s *Service) OnPosting(h PostingHook) {
	s.hooks = append(s.hooks, h)
}

func (s *Service) emit(ctx context.Context, ev PostingEvent) {
	if len(s.hooks) == 0 {
		return
	}
	ev.ID = uuid.Must(uuid.NewV7()).String()
	ev.OccurredAt = s.now()
	for i, h := range s.hooks {
		if err := h(ctx, ev); err != nil {
			s.log.Error("posting hook failed",
				zap.Int("hook", i),
				zap.String("event_id", ev.ID),
				zap.String("kind", string(ev.Kind)),
				zap.String("entry_id", ev.Entry.ID),
				zap.Error(err),
			)
		}
	}
}

// Resolve reports the account a generated entry would use for need and the
// tier that supplied it.
func (s *Service) Resolve(ctx context.Context, need resolver.Need) (*resolver.Resolution, error) {
	if !ledger.ValidPurpose(need.Purpose) {
		return nil, &ledger.ValidationError{Problems: []string{fmt.Sprintf("unknown purpose %q", need.Purpose)}}
	}
	return s.resolver.Resolve(ctx, need)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
